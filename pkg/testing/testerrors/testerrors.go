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

// Package testerrors holds assertions for status errors.
package testerrors

import (
	"testing"

	"kpt.dev/appsync/pkg/status"
	"sigs.k8s.io/cli-utils/pkg/testutil"
)

// AssertEqual fails the test if the actual error does not match the expected
// error by type and message. status errors match with errors.Is when only
// their codes agree, which is too lax for most tests.
func AssertEqual(t *testing.T, expected, actual error, msgAndArgs ...interface{}) {
	t.Helper()
	testutil.AssertEqual(t, testableError(expected), actual, msgAndArgs...)
}

// AssertCodes fails the test unless err carries exactly the status codes
// want, in order. A nil err carries no codes.
func AssertCodes(t *testing.T, want []string, err error) {
	t.Helper()
	got := status.Codes(err)
	if len(got) == 0 && len(want) == 0 {
		return
	}
	testutil.AssertEqual(t, want, got, "status codes of %v", err)
}

func testableError(err error) error {
	if err == nil {
		return nil
	}
	return testutil.EqualError(err)
}
