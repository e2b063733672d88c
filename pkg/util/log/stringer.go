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
	"encoding/json"
	"fmt"

	"github.com/kylelemons/godebug/diff"
	"sigs.k8s.io/yaml"
)

type jsonStringer struct {
	O interface{}
}

// AsJSON returns a new stringer object that delays marshaling until the
// String method is called. For logging at higher verbosity levels, to
// avoid formatting when the output isn't going to be used.
func AsJSON(o interface{}) fmt.Stringer {
	return &jsonStringer{O: o}
}

// String returns the object as json, or the error string if marshalling fails.
func (ojs *jsonStringer) String() string {
	bytes, err := json.Marshal(ojs.O)
	if err != nil {
		return err.Error()
	}
	return string(bytes)
}

type yamlStringer struct {
	O interface{}
}

// AsYAML returns a new stringer object that delays marshaling until the
// String method is called. For logging at higher verbosity levels, to
// avoid formatting when the output isn't going to be used.
func AsYAML(o interface{}) fmt.Stringer {
	return &yamlStringer{O: o}
}

// String returns the object as yaml, or the error string if marshalling fails.
func (oys *yamlStringer) String() string {
	bytes, err := yaml.Marshal(oys.O)
	if err != nil {
		return err.Error()
	}
	return string(bytes)
}

type yamlDiffStringer struct {
	Old, New interface{}
}

// AsYAMLDiff returns a new stringer object that delays marshaling and diffing
// until the String method is called.
// Does not do any object type or version conversion.
func AsYAMLDiff(oldObj, newObj interface{}) fmt.Stringer {
	return &yamlDiffStringer{Old: oldObj, New: newObj}
}

// String returns a diff (- Removed, + Added) of the objects as yaml, or the
// error string if marshalling fails.
// Uses diff.Diff to print full yaml, instead of cmp.Diff which truncates.
func (yds *yamlDiffStringer) String() string {
	return diff.Diff(AsYAML(yds.Old).String(), AsYAML(yds.New).String())
}
