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
	"strings"

	"sigs.k8s.io/controller-runtime/pkg/client"
)

// baseErrorImpl represents a root error around which more complex errors are built.
type baseErrorImpl struct {
	code string
}

var _ Error = baseErrorImpl{}

// Error implements error.
func (e baseErrorImpl) Error() string {
	return format(e)
}

// Is implements Error.
// Two status.Errors satisfy errors.Is() if they have the same code.
func (e baseErrorImpl) Is(target error) bool {
	if se, ok := target.(Error); ok {
		return e.Code() == se.Code()
	}
	return false
}

// Code implements Error.
func (e baseErrorImpl) Code() string {
	return e.code
}

// Body implements Error.
func (e baseErrorImpl) Body() string {
	return ""
}

// Cause implements Error.
func (e baseErrorImpl) Cause() error {
	return nil
}

type messageErrorImpl struct {
	underlying Error
	message    string
}

var _ Error = messageErrorImpl{}

// Error implements error.
func (m messageErrorImpl) Error() string {
	return format(m)
}

// Is implements Error.
func (m messageErrorImpl) Is(target error) bool {
	return m.underlying.Is(target)
}

// Code implements Error.
func (m messageErrorImpl) Code() string {
	return m.underlying.Code()
}

// Body implements Error.
func (m messageErrorImpl) Body() string {
	return formatBody(m.underlying.Body(), ": ", m.message)
}

// Cause implements Error.
func (m messageErrorImpl) Cause() error {
	return m.underlying.Cause()
}

type wrappedErrorImpl struct {
	underlying Error
	wrapped    error
}

var _ Error = wrappedErrorImpl{}

// Error implements error.
func (w wrappedErrorImpl) Error() string {
	return format(w)
}

// Is implements Error.
func (w wrappedErrorImpl) Is(target error) bool {
	return w.underlying.Is(target)
}

// Code implements Error.
func (w wrappedErrorImpl) Code() string {
	return w.underlying.Code()
}

// Body implements Error.
func (w wrappedErrorImpl) Body() string {
	return formatBody(w.underlying.Body(), ": ", w.wrapped.Error())
}

// Cause implements Error.
func (w wrappedErrorImpl) Cause() error {
	return w.wrapped
}

// Unwrap lets errors.Is and errors.As see the wrapped error.
func (w wrappedErrorImpl) Unwrap() error {
	return w.wrapped
}

// ResourceError is a status error about one or more resources.
type ResourceError interface {
	Error
	Resources() []client.Object
}

type resourceErrorImpl struct {
	underlying Error
	resources  []client.Object
}

var _ ResourceError = resourceErrorImpl{}

// Error implements error.
func (r resourceErrorImpl) Error() string {
	return format(r)
}

// Is implements Error.
func (r resourceErrorImpl) Is(target error) bool {
	return r.underlying.Is(target)
}

// Code implements Error.
func (r resourceErrorImpl) Code() string {
	return r.underlying.Code()
}

// Body implements Error.
func (r resourceErrorImpl) Body() string {
	var resources []string
	for _, res := range r.resources {
		resources = append(resources, printResource(res))
	}
	return formatBody(r.underlying.Body(), "\n\n", strings.Join(resources, "\n\n"))
}

// Cause implements Error.
func (r resourceErrorImpl) Cause() error {
	return r.underlying.Cause()
}

// Unwrap lets errors.Is and errors.As see the wrapped error.
func (r resourceErrorImpl) Unwrap() error {
	return r.underlying.Cause()
}

// Resources implements ResourceError.
func (r resourceErrorImpl) Resources() []client.Object {
	return r.resources
}

func formatBody(message, separator, context string) string {
	var sb strings.Builder
	sb.WriteString(message)
	if message != "" && context != "" {
		sb.WriteString(separator)
	}
	sb.WriteString(context)
	return sb.String()
}

func printResource(r client.Object) string {
	gvk := r.GetObjectKind().GroupVersionKind()
	var sb strings.Builder
	if ns := r.GetNamespace(); ns != "" {
		sb.WriteString("namespace: " + ns + "\n")
	}
	sb.WriteString("metadata.name: " + r.GetName() + "\n")
	sb.WriteString("group: " + gvk.Group + "\n")
	sb.WriteString("version: " + gvk.Version + "\n")
	sb.WriteString("kind: " + gvk.Kind)
	return sb.String()
}
