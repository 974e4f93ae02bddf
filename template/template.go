// Package template implements the small substitution language used by the
// notification templates. It is deliberately not html/template, the catalog
// is trusted and the language is two constructs, variables and single level
// conditional blocks.
//
//	{{name}}                  replaced with the value of name, or "" if absent
//	{{#if name}} ... {{/if}}  kept (with interior substitution) when name is
//	                          truthy, dropped entirely otherwise
//
// A pattern is parsed once into a flat list of segments and rendered from
// that, so a variable that only occurs inside a skipped block is never
// touched. Nested and unmatched block markers are rejected at parse time.
package template

import (
	"errors"
	"fmt"
	"strings"
)

// Vars holds the variables a render runs against. Values are strings or
// bools, anything else is stringified with fmt.Sprint.
type Vars map[string]any

var (
	ErrNestedBlock     = errors.New("conditional blocks may not nest")
	ErrUnmatchedMarker = errors.New("unmatched conditional block marker")
	ErrBadMarker       = errors.New("malformed marker")
)

const (
	openMarker  = "{{"
	closeMarker = "}}"
	blockStart  = "#if"
	blockEnd    = "/if"
)

type segKind int

const (
	segLiteral segKind = iota
	segVariable
	segBlock
)

type segment struct {
	kind  segKind
	text  string // literal content
	name  string // variable name, or block guard name
	inner []segment
}

// Template is a parsed pattern, safe for concurrent rendering.
type Template struct {
	segs []segment
}

// Parse tokenizes a pattern into literal, variable and block segments.
func Parse(pattern string) (*Template, error) {
	var segs []segment
	var block *segment

	emit := func(s segment) {
		if block != nil {
			block.inner = append(block.inner, s)
			return
		}
		segs = append(segs, s)
	}

	rest := pattern
	for {
		i := strings.Index(rest, openMarker)
		if i < 0 {
			break
		}
		if i > 0 {
			emit(segment{kind: segLiteral, text: rest[:i]})
		}
		rest = rest[i+len(openMarker):]

		j := strings.Index(rest, closeMarker)
		if j < 0 {
			return nil, fmt.Errorf("%w: unterminated %q", ErrBadMarker, openMarker)
		}
		token := strings.TrimSpace(rest[:j])
		rest = rest[j+len(closeMarker):]

		switch {
		case token == blockEnd:
			if block == nil {
				return nil, fmt.Errorf("%w: stray {{%s}}", ErrUnmatchedMarker, blockEnd)
			}
			segs = append(segs, *block)
			block = nil

		case strings.HasPrefix(token, blockStart):
			name := strings.TrimSpace(strings.TrimPrefix(token, blockStart))
			if name == "" || strings.ContainsAny(name, " \t") {
				return nil, fmt.Errorf("%w: bad block guard %q", ErrBadMarker, token)
			}
			if block != nil {
				return nil, fmt.Errorf("%w: block %q opened inside block %q", ErrNestedBlock, name, block.name)
			}
			block = &segment{kind: segBlock, name: name}

		default:
			if token == "" || strings.ContainsAny(token, " \t") {
				return nil, fmt.Errorf("%w: bad variable name %q", ErrBadMarker, token)
			}
			emit(segment{kind: segVariable, name: token})
		}
	}
	if block != nil {
		return nil, fmt.Errorf("%w: block %q was never closed", ErrUnmatchedMarker, block.name)
	}
	if len(rest) > 0 {
		emit(segment{kind: segLiteral, text: rest})
	}

	return &Template{segs: segs}, nil
}

// MustParse is for the static catalog where a parse failure is a
// programming error.
func MustParse(pattern string) *Template {
	t, err := Parse(pattern)
	if err != nil {
		panic(err)
	}
	return t
}

// Render substitutes vars into the parsed pattern. It never fails, a missing
// variable renders as the empty string and a missing block guard drops the
// block.
func (t *Template) Render(vars Vars) string {
	var sb strings.Builder
	for _, s := range t.segs {
		renderSegment(&sb, s, vars)
	}
	return sb.String()
}

func renderSegment(sb *strings.Builder, s segment, vars Vars) {
	switch s.kind {
	case segLiteral:
		sb.WriteString(s.text)
	case segVariable:
		sb.WriteString(stringify(vars[s.name]))
	case segBlock:
		if !truthy(vars[s.name]) {
			return
		}
		for _, inner := range s.inner {
			renderSegment(sb, inner, vars)
		}
	}
}

// Render is a convenience for one-off patterns.
func Render(pattern string, vars Vars) (string, error) {
	t, err := Parse(pattern)
	if err != nil {
		return "", err
	}
	return t.Render(vars), nil
}

func stringify(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	default:
		return fmt.Sprint(vv)
	}
}

func truthy(v any) bool {
	switch vv := v.(type) {
	case nil:
		return false
	case bool:
		return vv
	case string:
		return len(vv) > 0
	default:
		return len(fmt.Sprint(vv)) > 0
	}
}
