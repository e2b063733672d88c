// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package status

import "github.com/pkg/errors"

// InternalErrorCode is the error code for Internal.
const InternalErrorCode = "1099"

// InternalErrorBuilder allows creating complex internal errors.
var InternalErrorBuilder = NewErrorBuilder(InternalErrorCode).Sprint("internal error")

// InternalError represents conditions that should never happen. They indicate
// a bug rather than a problem with the source or the cluster.
func InternalError(message string) Error {
	return InternalErrorBuilder.Sprint(message).Build()
}

// InternalErrorf returns an InternalError with a formatted message.
func InternalErrorf(format string, a ...interface{}) Error {
	return InternalErrorBuilder.Sprintf(format, a...).Build()
}

// InternalWrap wraps an error as an internal error.
func InternalWrap(err error) Error {
	return InternalErrorBuilder.Wrap(err).Build()
}

// AsError returns err as a status.Error, wrapping it as an InternalError if
// it is not one already.
func AsError(err error) Error {
	if err == nil {
		return nil
	}
	var se Error
	if errors.As(err, &se) {
		return se
	}
	return InternalWrap(err)
}
