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

import (
	"fmt"
	"strings"

	"k8s.io/klog/v2"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ErrorBuilder constructs structured error messages.
// Use NewErrorBuilder to register a new code.
//
// Libraries should not expose ErrorBuilders directly. Keep them package
// private and provide functions which fix the number and position of the
// formatting arguments, so every error with a code reads the same.
//
//	var myErrorBuilder = NewErrorBuilder("1234").Sprint("a coloring problem")
//
//	func MyError(color string) Error {
//	  return myErrorBuilder.Sprintf("color %q", color).Build()
//	}
type ErrorBuilder struct {
	error Error
}

// NewErrorBuilder returns an ErrorBuilder registered with the passed unique
// code.
func NewErrorBuilder(code string) ErrorBuilder {
	register(code)
	return ErrorBuilder{error: baseErrorImpl{code: code}}
}

// Build returns the Error inside the ErrorBuilder.
func (eb ErrorBuilder) Build() Error {
	return eb.error
}

// BuildWithResources adds the resources the Error is about.
func (eb ErrorBuilder) BuildWithResources(resources ...client.Object) ResourceError {
	if eb.error == nil {
		return nil
	}
	return resourceErrorImpl{
		underlying: eb.error,
		resources:  resources,
	}
}

// Sprint adds a message string into the Error inside the ErrorBuilder.
func (eb ErrorBuilder) Sprint(message string) ErrorBuilder {
	if eb.error == nil {
		return eb
	}
	return ErrorBuilder{error: messageErrorImpl{
		underlying: eb.error,
		message:    message,
	}}
}

// Sprintf adds a formatted string into the Error inside the ErrorBuilder.
func (eb ErrorBuilder) Sprintf(format string, a ...interface{}) ErrorBuilder {
	for _, e := range a {
		if _, isError := e.(error); isError {
			// Formatting an error loses its type; use Wrap.
			reportMisuse("attempted format error when .Wrap should have been used")
		}
	}
	message := fmt.Sprintf(format, a...)
	if strings.Contains(message, "%!") {
		reportMisuse("improperly formatted error message: " + message)
	}
	return eb.Sprint(message)
}

// Wrap adds an error into the Error inside the ErrorBuilder.
func (eb ErrorBuilder) Wrap(toWrap error) ErrorBuilder {
	if toWrap == nil || eb.error == nil {
		return ErrorBuilder{error: nil}
	}
	if e, isStatusError := toWrap.(Error); isStatusError {
		klog.Info(e.Code())
		reportMisuse("attempted wrap a status.Error in another status.Error")
	}
	return ErrorBuilder{error: wrappedErrorImpl{
		underlying: eb.error,
		wrapped:    toWrap,
	}}
}
