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
	"sort"
	"sync"

	"go.uber.org/multierr"
	"k8s.io/klog/v2"
	"kpt.dev/appsync/pkg/status"
)

// Applications is a threadsafe container for the descriptors generated by
// every ApplicationSet in the last expansion pass.
type Applications struct {
	mutex sync.RWMutex
	// byName is never written to once it has been assigned; Update replaces
	// it with a new map.
	byName map[string]Descriptor
}

// Update replaces the declared applications with those in byRule, keyed by
// ApplicationSet name.
//
// Application names must be unique across ApplicationSets. A name declared
// by the last Update stays with its ApplicationSet while that ApplicationSet
// exists. Other names go to the first rule generating them, in name order.
// A rule which generates a name owned by another rule is rejected as a whole
// and keeps the applications it was last accepted with. Update returns the
// accepted descriptors per rule, and the error of every rejected rule.
func (a *Applications) Update(byRule map[string][]Descriptor) (map[string][]Descriptor, map[string]error) {
	rules := make([]string, 0, len(byRule))
	for rule := range byRule {
		rules = append(rules, rule)
	}
	sort.Strings(rules)

	previous := a.getSet()
	owners := make(map[string]string, len(previous))
	for name, d := range previous {
		if _, found := byRule[d.ApplicationSet]; found {
			owners[name] = d.ApplicationSet
		}
	}

	newSet := make(map[string]Descriptor)
	accepted := make(map[string][]Descriptor, len(byRule))
	rejected := make(map[string]error)
	for _, rule := range rules {
		var errs error
		for _, d := range byRule[rule] {
			owner, claimed := owners[d.Name]
			if !claimed {
				if prev, taken := newSet[d.Name]; taken {
					owner, claimed = prev.ApplicationSet, true
				}
			}
			if claimed && owner != rule {
				errs = multierr.Append(errs, status.DuplicateApplicationError(rule, owner, d.Name))
			}
		}
		if errs != nil {
			klog.Warningf("Rejecting ApplicationSet %q: %v", rule, errs)
			rejected[rule] = errs
			continue
		}
		for _, d := range byRule[rule] {
			newSet[d.Name] = d
		}
		accepted[rule] = byRule[rule]
	}

	// Rejected rules keep their applications, and so their names.
	for name, d := range previous {
		if _, isRejected := rejected[d.ApplicationSet]; !isRejected {
			continue
		}
		if _, taken := newSet[name]; !taken {
			newSet[name] = d
		}
	}

	a.mutex.Lock()
	a.byName = newSet
	a.mutex.Unlock()
	return accepted, rejected
}

// Get returns a copy of the declared application with the given name.
func (a *Applications) Get(name string) (Descriptor, bool) {
	d, found := a.getSet()[name]
	return d.DeepCopy(), found
}

// Names returns the names of all declared applications, sorted.
func (a *Applications) Names() []string {
	set := a.getSet()
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of declared applications.
func (a *Applications) Len() int {
	return len(a.getSet())
}

func (a *Applications) getSet() map[string]Descriptor {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.byName
}
