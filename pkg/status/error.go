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
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// CodePrefix is prepended to every error code shown to users.
const CodePrefix = "ASY"

func asy(code string) string {
	return CodePrefix + code
}

// Error is an appsync error which is shown to users and documented.
//
// Errors with the same code share a strong unifying feature and suggest the
// same fix. The four digits of a code have no meaning except:
// - 1XXX, the source or the cluster needs to change before the error clears.
// - 1099, InternalError.
type Error interface {
	error
	// Code is the unique identifier of the error to help users find documentation.
	Code() string
	// Body is the body of the error to be printed.
	Body() string
	// Cause is the underlying error, if any.
	Cause() error
	// Is allows comparing error types through errors.Is.
	Is(target error) bool
}

// registered is the set of error codes in use.
var registered = map[string]bool{}

// register marks the passed error code as used.
func register(code string) {
	if registered[code] {
		reportMisuse(fmt.Sprintf("duplicate error code %s", code))
	}
	registered[code] = true
}

// CodeRegistry returns a sorted list of currently registered error codes.
func CodeRegistry() []string {
	var codes []string
	for code := range registered {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// format formats error messages consistently.
func format(err Error) string {
	var sb strings.Builder
	sb.WriteString(asy(err.Code()))
	sb.WriteString(": ")
	sb.WriteString(err.Body())
	return sb.String()
}

// CodeOf returns the code of the first status.Error found in err's chain, or
// "" if there is none.
func CodeOf(err error) string {
	var se Error
	if errors.As(err, &se) {
		return se.Code()
	}
	return ""
}

// HasCode returns true if err, or any error aggregated into err, is a
// status.Error with the passed code.
func HasCode(err error, code string) bool {
	for _, e := range multierr.Errors(err) {
		if CodeOf(e) == code {
			return true
		}
	}
	return false
}

// Codes returns the distinct codes of the errors aggregated into err, sorted.
func Codes(err error) []string {
	seen := map[string]bool{}
	var codes []string
	for _, e := range multierr.Errors(err) {
		code := CodeOf(e)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
