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

package generator

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTemplate(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    Template
		wantErr bool
	}{
		{
			name:  "literal only",
			input: "web",
			want:  Template{{Kind: Literal, Arg: "web"}},
		},
		{
			name:  "prefix and basename",
			input: "svc-{{path.basename}}",
			want:  Template{{Kind: Literal, Arg: "svc-"}, {Kind: PathBasename}},
		},
		{
			name:  "spaces inside braces",
			input: "{{ path }}",
			want:  Template{{Kind: Path}},
		},
		{
			name:  "segments and values",
			input: "{{path[0]}}-{{path[-1]}}.{{values.env}}",
			want: Template{
				{Kind: PathSegment, Index: 0},
				{Kind: Literal, Arg: "-"},
				{Kind: PathSegment, Index: -1},
				{Kind: Literal, Arg: "."},
				{Kind: Value, Arg: "env"},
			},
		},
		{
			name:  "empty",
			input: "",
		},
		{
			name:    "unknown token",
			input:   "{{path.filename}}",
			wantErr: true,
		},
		{
			name:    "unterminated token",
			input:   "svc-{{path.basename",
			wantErr: true,
		},
		{
			name:    "empty value name",
			input:   "{{values.}}",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTemplate(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ParseTemplate() diff (-want +got):\n%s", diff)
			}
			if !strings.Contains(tc.input, " ") {
				assert.Equal(t, tc.input, got.String())
			}
		})
	}
}

func TestRender(t *testing.T) {
	values := map[string]string{"env": "prod"}
	testCases := []struct {
		tmpl    string
		dir     string
		want    string
		wantErr bool
	}{
		{tmpl: "{{path}}", dir: "services/a", want: "services/a"},
		{tmpl: "svc-{{path.basename}}", dir: "services/a", want: "svc-a"},
		{tmpl: "{{path.basenameNormalized}}", dir: "services/My_App.v2", want: "my-app-v2"},
		{tmpl: "{{path[0]}}", dir: "teams/red/api", want: "teams"},
		{tmpl: "{{path[-2]}}-{{path[-1]}}", dir: "teams/red/api", want: "red-api"},
		{tmpl: "{{path.basename}}-{{values.env}}", dir: "services/a", want: "a-prod"},
		{tmpl: "{{path[3]}}", dir: "teams/red/api", wantErr: true},
		{tmpl: "{{path[-4]}}", dir: "teams/red/api", wantErr: true},
		{tmpl: "{{values.region}}", dir: "services/a", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.tmpl+" "+tc.dir, func(t *testing.T) {
			tmpl, err := ParseTemplate(tc.tmpl)
			require.NoError(t, err)
			got, err := tmpl.Render(tc.dir, values)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeLabel(t *testing.T) {
	testCases := map[string]string{
		"web":             "web",
		"Web_Frontend":    "web-frontend",
		"--a..b--":        "a-b",
		"UPPER CASE name": "upper-case-name",
	}
	for input, want := range testCases {
		assert.Equal(t, want, NormalizeLabel(input), input)
	}

	long := NormalizeLabel(strings.Repeat("abcdefghij", 7) + "-x")
	assert.Len(t, long, 63)
}
