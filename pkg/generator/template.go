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
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// TokenKind identifies what a Token renders.
type TokenKind int

const (
	// Literal renders Token.Arg unchanged.
	Literal TokenKind = iota
	// Path renders the matched directory, e.g. "services/a".
	Path
	// PathBasename renders the last segment of the matched directory.
	PathBasename
	// PathBasenameNormalized renders PathBasename as a DNS-1123 label.
	PathBasenameNormalized
	// PathSegment renders segment Token.Index of the matched directory.
	// Negative indexes count from the last segment.
	PathSegment
	// Value renders the ApplicationSet value named Token.Arg.
	Value
)

// Token is one parsed element of a template string.
type Token struct {
	Kind  TokenKind
	Arg   string
	Index int
}

// Template is a parsed template string. Templates are parsed once per
// ApplicationSet so that unknown tokens are reported before any directory is
// rendered.
type Template []Token

var segmentToken = regexp.MustCompile(`^path\[(-?[0-9]+)\]$`)

// ParseTemplate parses s. Tokens are written as "{{name}}"; spaces inside
// the braces are ignored.
func ParseTemplate(s string) (Template, error) {
	var tmpl Template
	rest := s
	for rest != "" {
		start := strings.Index(rest, "{{")
		if start < 0 {
			tmpl = append(tmpl, Token{Kind: Literal, Arg: rest})
			break
		}
		if start > 0 {
			tmpl = append(tmpl, Token{Kind: Literal, Arg: rest[:start]})
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			return nil, errors.Errorf("unterminated token at offset %d", len(s)-len(rest)+start)
		}
		token, err := parseToken(strings.TrimSpace(rest[start+2 : start+end]))
		if err != nil {
			return nil, err
		}
		tmpl = append(tmpl, token)
		rest = rest[start+end+2:]
	}
	return tmpl, nil
}

func parseToken(name string) (Token, error) {
	switch name {
	case "path":
		return Token{Kind: Path}, nil
	case "path.basename":
		return Token{Kind: PathBasename}, nil
	case "path.basenameNormalized":
		return Token{Kind: PathBasenameNormalized}, nil
	}
	if m := segmentToken.FindStringSubmatch(name); m != nil {
		i, err := strconv.Atoi(m[1])
		if err != nil {
			return Token{}, errors.Wrapf(err, "invalid segment index in %q", name)
		}
		return Token{Kind: PathSegment, Index: i}, nil
	}
	if key := strings.TrimPrefix(name, "values."); key != name && key != "" {
		return Token{Kind: Value, Arg: key}, nil
	}
	return Token{}, errors.Errorf("unknown token %q", "{{"+name+"}}")
}

// Values returns the names of the values the template refers to.
func (t Template) Values() []string {
	var keys []string
	for _, token := range t {
		if token.Kind == Value {
			keys = append(keys, token.Arg)
		}
	}
	return keys
}

// Render substitutes dir and values into the template.
func (t Template) Render(dir string, values map[string]string) (string, error) {
	var sb strings.Builder
	segments := strings.Split(dir, "/")
	for _, token := range t {
		switch token.Kind {
		case Literal:
			sb.WriteString(token.Arg)
		case Path:
			sb.WriteString(dir)
		case PathBasename:
			sb.WriteString(path.Base(dir))
		case PathBasenameNormalized:
			sb.WriteString(NormalizeLabel(path.Base(dir)))
		case PathSegment:
			i := token.Index
			if i < 0 {
				i += len(segments)
			}
			if i < 0 || i >= len(segments) {
				return "", errors.Errorf("directory %q has no segment %d", dir, token.Index)
			}
			sb.WriteString(segments[i])
		case Value:
			v, found := values[token.Arg]
			if !found {
				return "", errors.Errorf("value %q is not defined", token.Arg)
			}
			sb.WriteString(v)
		default:
			return "", errors.Errorf("unsupported token kind %d", token.Kind)
		}
	}
	return sb.String(), nil
}

// String returns the template in its source form.
func (t Template) String() string {
	var sb strings.Builder
	for _, token := range t {
		switch token.Kind {
		case Literal:
			sb.WriteString(token.Arg)
		case Path:
			sb.WriteString("{{path}}")
		case PathBasename:
			sb.WriteString("{{path.basename}}")
		case PathBasenameNormalized:
			sb.WriteString("{{path.basenameNormalized}}")
		case PathSegment:
			fmt.Fprintf(&sb, "{{path[%d]}}", token.Index)
		case Value:
			fmt.Fprintf(&sb, "{{values.%s}}", token.Arg)
		}
	}
	return sb.String()
}

const maxLabelLength = 63

var invalidLabelChars = regexp.MustCompile(`[^a-z0-9-]+`)

// NormalizeLabel converts s to a DNS-1123 label: lower case, runs of invalid
// characters replaced with "-", no leading or trailing "-", at most 63
// characters.
func NormalizeLabel(s string) string {
	s = invalidLabelChars.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-")
	if len(s) > maxLabelLength {
		s = strings.TrimRight(s[:maxLabelLength], "-")
	}
	return s
}
