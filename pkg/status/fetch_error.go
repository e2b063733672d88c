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

// FetchErrorCode is the error code for a source which could not be fetched.
const FetchErrorCode = "1001"

var fetchErrorBuilder = NewErrorBuilder(FetchErrorCode)

// FetchReason classifies why a fetch failed.
type FetchReason string

const (
	// FetchReasonAuth means the source rejected the credentials.
	FetchReasonAuth FetchReason = "auth"
	// FetchReasonNetwork means the source could not be reached.
	FetchReasonNetwork FetchReason = "network"
	// FetchReasonNotFound means the repository or revision does not exist.
	FetchReasonNotFound FetchReason = "not-found"
	// FetchReasonUnknown is any other failure.
	FetchReasonUnknown FetchReason = "unknown"
)

type fetchError struct {
	underlying Error
	reason     FetchReason
}

var _ Error = fetchError{}

// Error implements error.
func (f fetchError) Error() string {
	return format(f)
}

// Is implements Error.
func (f fetchError) Is(target error) bool {
	return f.underlying.Is(target)
}

// Code implements Error.
func (f fetchError) Code() string {
	return f.underlying.Code()
}

// Body implements Error.
func (f fetchError) Body() string {
	return f.underlying.Body()
}

// Cause implements Error.
func (f fetchError) Cause() error {
	return f.underlying.Cause()
}

// Unwrap lets errors.Is and errors.As see the wrapped error.
func (f fetchError) Unwrap() error {
	return f.underlying.Cause()
}

// Reason returns why the fetch failed.
func (f fetchError) Reason() FetchReason {
	return f.reason
}

// FetchError reports that repo could not be fetched at revision.
func FetchError(repo, revision string, reason FetchReason, err error) Error {
	if err == nil {
		err = errors.New("fetch failed")
	}
	return fetchError{
		underlying: fetchErrorBuilder.
			Sprintf("failed to fetch %q at %q (%s)", repo, revision, reason).
			Wrap(err).Build(),
		reason:     reason,
	}
}

// FetchReasonOf returns the reason of the FetchError in err's chain, or ""
// if err is not a FetchError.
func FetchReasonOf(err error) FetchReason {
	var fe fetchError
	if errors.As(err, &fe) {
		return fe.reason
	}
	return ""
}
