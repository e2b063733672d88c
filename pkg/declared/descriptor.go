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

package declared

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
)

// Descriptor is the desired state of one application, generated by an
// ApplicationSet for one matched directory. Its Name is a pure function of
// the rule and the matched path.
type Descriptor struct {
	Name           string            `json:"name"`
	ApplicationSet string            `json:"applicationSet"`
	Project        string            `json:"project"`
	Source         Source            `json:"source"`
	Destination    Destination       `json:"destination"`
	SyncPolicy     SyncPolicy        `json:"syncPolicy"`
	Wave           int               `json:"wave"`
	Labels         map[string]string `json:"labels,omitempty"`
	Annotations    map[string]string `json:"annotations,omitempty"`
}

// Source locates the manifests of an application.
type Source struct {
	RepoURL  string `json:"repoURL"`
	Revision string `json:"revision"`
	Path     string `json:"path"`
	Recurse  bool   `json:"recurse,omitempty"`
}

// Destination is where the manifests of an application are applied.
type Destination struct {
	Server    string `json:"server"`
	Namespace string `json:"namespace"`
}

// SyncPolicy holds the automation flags of an application.
type SyncPolicy struct {
	AutoPrune       bool `json:"autoPrune,omitempty"`
	SelfHeal        bool `json:"selfHeal,omitempty"`
	CreateNamespace bool `json:"createNamespace,omitempty"`
}

// Fingerprint returns a stable digest of the descriptor. Two descriptors
// with the same fingerprint describe the same desired state.
func (d Descriptor) Fingerprint() string {
	// json.Marshal sorts map keys, so the encoding is deterministic.
	b, err := json.Marshal(d)
	if err != nil {
		// Descriptor only holds strings, ints, bools and string maps.
		panic(err)
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return fmt.Sprintf("%016x", h.Sum64())
}

// DeepCopy returns a copy of d which shares no maps with it.
func (d Descriptor) DeepCopy() Descriptor {
	out := d
	out.Labels = copyMap(d.Labels)
	out.Annotations = copyMap(d.Annotations)
	return out
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
