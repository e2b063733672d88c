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

package source

import (
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// Pattern selects directories of a tree.
type Pattern struct {
	// Path is a doublestar glob matched against slash-separated directory
	// paths relative to the repository root.
	Path string
	// Exclude removes matching directories from the result.
	Exclude bool
}

// Validate returns an error if any pattern is malformed.
func Validate(patterns []Pattern) error {
	for _, p := range patterns {
		if p.Path == "" {
			return errors.New("directory pattern must not be empty")
		}
		if !doublestar.ValidatePattern(strings.Trim(p.Path, "/")) {
			return errors.Errorf("invalid directory pattern %q", p.Path)
		}
	}
	return nil
}

// Match returns the directories of dirs which match at least one include
// pattern and no exclude pattern, sorted. Directories with a hidden segment,
// such as .git, never match.
func Match(dirs []string, patterns []Pattern) ([]string, error) {
	if err := Validate(patterns); err != nil {
		return nil, err
	}
	var out []string
	for _, dir := range dirs {
		if hidden(dir) {
			continue
		}
		included := false
		excluded := false
		for _, p := range patterns {
			// ValidatePattern was checked, so Match cannot fail.
			ok, _ := doublestar.Match(strings.Trim(p.Path, "/"), dir)
			if !ok {
				continue
			}
			if p.Exclude {
				excluded = true
				break
			}
			included = true
		}
		if included && !excluded {
			out = append(out, dir)
		}
	}
	sort.Strings(out)
	return out, nil
}

func hidden(dir string) bool {
	for _, segment := range strings.Split(dir, "/") {
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return false
}
