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

// Package generator turns the directories matched by an ApplicationSet into
// application descriptors.
package generator

import (
	"sort"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"k8s.io/apimachinery/pkg/util/validation"
	"kpt.dev/appsync/pkg/api/appsync"
	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/declared"
	"kpt.dev/appsync/pkg/metadata"
	"kpt.dev/appsync/pkg/source"
	"kpt.dev/appsync/pkg/status"
)

// DefaultRevision is used when an ApplicationSet does not name a revision.
const DefaultRevision = "HEAD"

const defaultSourcePath = "{{path}}"

// Rule is an ApplicationSet whose templates have been parsed.
type Rule struct {
	Name string

	set         *v1alpha1.ApplicationSet
	patterns    []source.Pattern
	name        Template
	project     Template
	sourcePath  Template
	server      Template
	namespace   Template
	labels      map[string]Template
	annotations map[string]Template
}

// Compile parses the directory patterns and every template of set. A
// malformed pattern or template is reported as an InvalidTemplateError.
func Compile(set *v1alpha1.ApplicationSet) (*Rule, error) {
	r := &Rule{
		Name:        set.Name,
		set:         set,
		labels:      make(map[string]Template),
		annotations: make(map[string]Template),
	}

	if len(set.Spec.Directories) == 0 {
		return nil, status.InvalidTemplateError(set.Name, "", "spec.directories must not be empty")
	}
	for _, d := range set.Spec.Directories {
		r.patterns = append(r.patterns, source.Pattern{Path: d.Path, Exclude: d.Exclude})
	}
	if err := source.Validate(r.patterns); err != nil {
		return nil, status.InvalidTemplateError(set.Name, "spec.directories", err.Error())
	}

	tmpl := set.Spec.Template
	var errs error
	parse := func(s string) Template {
		t, err := ParseTemplate(s)
		if err != nil {
			errs = multierr.Append(errs, status.InvalidTemplateError(set.Name, s, err.Error()))
			return nil
		}
		for _, key := range t.Values() {
			if _, found := set.Spec.Values[key]; !found {
				errs = multierr.Append(errs, status.InvalidTemplateError(set.Name, s,
					"value "+strconv.Quote(key)+" is not defined in spec.values"))
			}
		}
		return t
	}

	if tmpl.Metadata.Name == "" {
		errs = multierr.Append(errs, status.InvalidTemplateError(set.Name, "", "template.metadata.name must not be empty"))
	}
	r.name = parse(tmpl.Metadata.Name)
	r.project = parse(tmpl.Spec.Project)
	sourcePath := tmpl.Spec.Source.Path
	if sourcePath == "" {
		sourcePath = defaultSourcePath
	}
	r.sourcePath = parse(sourcePath)
	r.server = parse(tmpl.Spec.Destination.Server)
	r.namespace = parse(tmpl.Spec.Destination.Namespace)
	for k, v := range tmpl.Metadata.Labels {
		r.labels[k] = parse(v)
	}
	for k, v := range tmpl.Metadata.Annotations {
		r.annotations[k] = parse(v)
	}
	if errs != nil {
		return nil, errs
	}
	return r, nil
}

// Patterns returns the directory patterns of the rule.
func (r *Rule) Patterns() []source.Pattern {
	return r.patterns
}

// Source returns the repository and revision the rule discovers directories
// in.
func (r *Rule) Source() (repo, revision string) {
	revision = r.set.Spec.Source.Revision
	if revision == "" {
		revision = DefaultRevision
	}
	return r.set.Spec.Source.RepoURL, revision
}

// ApplicationSet returns the document the rule was compiled from.
func (r *Rule) ApplicationSet() *v1alpha1.ApplicationSet {
	return r.set
}

// Expand renders one descriptor per directory, sorted by name.
//
// Expand is all or nothing: if any directory renders an invalid value, or
// two directories render the same name, it returns no descriptors and every
// problem found.
func (r *Rule) Expand(dirs []string) ([]declared.Descriptor, error) {
	dirs = dedupe(dirs)

	var errs error
	byName := make(map[string][]string)
	var descs []declared.Descriptor
	for _, dir := range dirs {
		desc, err := r.render(dir)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		byName[desc.Name] = append(byName[desc.Name], dir)
		descs = append(descs, desc)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if paths := byName[name]; len(paths) > 1 {
			errs = multierr.Append(errs, status.NamingCollisionError(r.Name, name, paths))
		}
	}
	if errs != nil {
		return nil, errs
	}

	sort.Slice(descs, func(i, j int) bool {
		return descs[i].Name < descs[j].Name
	})
	return descs, nil
}

// Expand compiles set and expands dirs with it.
func Expand(set *v1alpha1.ApplicationSet, dirs []string) ([]declared.Descriptor, error) {
	r, err := Compile(set)
	if err != nil {
		return nil, err
	}
	return r.Expand(dirs)
}

func (r *Rule) render(dir string) (declared.Descriptor, error) {
	values := r.set.Spec.Values
	var errs error
	render := func(field string, t Template) string {
		s, err := t.Render(dir, values)
		if err != nil {
			errs = multierr.Append(errs, status.InvalidRenderedValueError(r.Name, dir, field, t.String(), err.Error()))
		}
		return s
	}

	policy := r.set.Spec.Template.Spec.SyncPolicy
	desc := declared.Descriptor{
		Name:           render("name", r.name),
		ApplicationSet: r.Name,
		Project:        render("project", r.project),
		Source: declared.Source{
			Path:    render("source path", r.sourcePath),
			Recurse: r.set.Spec.Template.Spec.Source.Recurse,
		},
		Destination: declared.Destination{
			Server:    render("destination server", r.server),
			Namespace: render("destination namespace", r.namespace),
		},
		SyncPolicy: declared.SyncPolicy{
			CreateNamespace: metadata.HasOption(policy.SyncOptions, metadata.SyncOptionCreateNamespace),
		},
	}
	desc.Source.RepoURL, desc.Source.Revision = r.Source()
	if policy.Automated != nil {
		desc.SyncPolicy.AutoPrune = policy.Automated.Prune
		desc.SyncPolicy.SelfHeal = policy.Automated.SelfHeal
	}
	if desc.Project == "" {
		desc.Project = v1alpha1.DefaultProject
	}
	if desc.Destination.Server == "" {
		desc.Destination.Server = appsync.DefaultServer
	}
	if len(r.labels) > 0 {
		desc.Labels = make(map[string]string, len(r.labels))
		for k, t := range r.labels {
			desc.Labels[k] = render("label "+k, t)
		}
	}
	if len(r.annotations) > 0 {
		desc.Annotations = make(map[string]string, len(r.annotations))
		for k, t := range r.annotations {
			desc.Annotations[k] = render("annotation "+k, t)
		}
	}
	if errs != nil {
		return declared.Descriptor{}, errs
	}

	if err := r.validate(dir, &desc); err != nil {
		return declared.Descriptor{}, err
	}
	return desc, nil
}

func (r *Rule) validate(dir string, desc *declared.Descriptor) error {
	var errs error
	invalid := func(field, value string, msgs []string) {
		if len(msgs) > 0 {
			errs = multierr.Append(errs, status.InvalidRenderedValueError(r.Name, dir, field, value, strings.Join(msgs, "; ")))
		}
	}

	invalid("name", desc.Name, validation.IsDNS1123Subdomain(desc.Name))
	// The name is also the value of the owner label on every applied object.
	invalid("name", desc.Name, validation.IsValidLabelValue(desc.Name))
	if desc.Destination.Namespace != "" {
		invalid("destination namespace", desc.Destination.Namespace, validation.IsDNS1123Label(desc.Destination.Namespace))
	}
	invalid("project", desc.Project, validation.IsDNS1123Subdomain(desc.Project))

	if wave, found := desc.Annotations[metadata.SyncWaveAnnotationKey]; found && wave != "" {
		w, err := strconv.Atoi(strings.TrimSpace(wave))
		if err != nil {
			invalid("sync wave", wave, []string{"must be an integer"})
		}
		desc.Wave = w
	}
	return errs
}

func dedupe(dirs []string) []string {
	seen := make(map[string]bool, len(dirs))
	var out []string
	for _, d := range dirs {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}
