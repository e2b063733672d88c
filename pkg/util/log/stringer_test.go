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

package log

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"kpt.dev/appsync/pkg/core"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

func namespace(labels map[string]interface{}) *unstructured.Unstructured {
	metadata := map[string]interface{}{
		"name": "example",
	}
	if labels != nil {
		metadata["labels"] = labels
	}
	return &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": "v1",
			"kind":       "Namespace",
			"metadata":   metadata,
		},
	}
}

func TestAsYAML(t *testing.T) {
	testCases := []struct {
		name           string
		input          interface{}
		expectedOutput string
	}{
		{
			name:  "unstructured namespace",
			input: namespace(nil),
			expectedOutput: `apiVersion: v1
kind: Namespace
metadata:
  name: example
`,
		},
		{
			name: "core.ID (non-object compound struct)",
			input: core.ID{
				GroupKind: schema.GroupKind{Kind: "Namespace"},
				ObjectKey: client.ObjectKey{Name: "example"},
			},
			expectedOutput: `Group: ""
Kind: Namespace
Name: example
Namespace: ""
`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedOutput, AsYAML(tc.input).String())
		})
	}
}

func TestAsYAMLDiff(t *testing.T) {
	out := AsYAMLDiff(
		namespace(map[string]interface{}{"team": "a"}),
		namespace(map[string]interface{}{"team": "b"}),
	).String()

	var removed, added []string
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "-"):
			removed = append(removed, strings.TrimSpace(line[1:]))
		case strings.HasPrefix(line, "+"):
			added = append(added, strings.TrimSpace(line[1:]))
		}
	}
	assert.Equal(t, []string{"team: a"}, removed)
	assert.Equal(t, []string{"team: b"}, added)
}

func TestAsJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, AsJSON(map[string]int{"a": 1}).String())
}
