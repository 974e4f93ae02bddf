package template

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var markerRe = regexp.MustCompile(`\{\{.*?\}\}`)

func TestRenderVariables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pattern  string
		vars     Vars
		expected string
	}{
		{
			name:     "simple substitution",
			pattern:  "Bonjour {{clientName}},",
			vars:     Vars{"clientName": "Marie"},
			expected: "Bonjour Marie,",
		},
		{
			name:     "missing variable renders empty",
			pattern:  "Bonjour {{clientName}},",
			vars:     Vars{},
			expected: "Bonjour ,",
		},
		{
			name:     "nil vars",
			pattern:  "Bonjour {{clientName}},",
			vars:     nil,
			expected: "Bonjour ,",
		},
		{
			name:     "variable used twice",
			pattern:  "{{a}} et {{a}}",
			vars:     Vars{"a": "x"},
			expected: "x et x",
		},
		{
			name:     "whitespace inside marker is trimmed",
			pattern:  "{{ requestTitle }}",
			vars:     Vars{"requestTitle": "Fuite d'eau"},
			expected: "Fuite d'eau",
		},
		{
			name:     "non string value is stringified",
			pattern:  "{{count}} réponses",
			vars:     Vars{"count": 3},
			expected: "3 réponses",
		},
		{
			name:     "no markers at all",
			pattern:  "rien à remplacer",
			vars:     Vars{"a": "b"},
			expected: "rien à remplacer",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out, err := Render(tc.pattern, tc.vars)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, out)
		})
	}
}

func TestRenderConditionalBlocks(t *testing.T) {
	t.Parallel()

	pattern := "Coordonnées :{{#if phone}} tél {{phone}}{{/if}}{{#if email}} email {{email}}{{/if}}"

	tests := []struct {
		name     string
		vars     Vars
		expected string
	}{
		{
			name:     "both present",
			vars:     Vars{"phone": "0601020304", "email": "pro@atelier.fr"},
			expected: "Coordonnées : tél 0601020304 email pro@atelier.fr",
		},
		{
			name:     "empty string is falsy",
			vars:     Vars{"phone": "", "email": "pro@atelier.fr"},
			expected: "Coordonnées : email pro@atelier.fr",
		},
		{
			name:     "absent guard drops the block",
			vars:     Vars{},
			expected: "Coordonnées :",
		},
		{
			name:     "bool guards",
			vars:     Vars{"phone": true, "email": false},
			expected: "Coordonnées : tél true",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out, err := Render(pattern, tc.vars)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, out)
			assert.NotRegexp(t, markerRe, out)
		})
	}
}

func TestRenderNeverLeaksMarkers(t *testing.T) {
	t.Parallel()

	pattern := "a {{one}} b {{#if two}}{{three}} {{four}}{{/if}} c {{five}}"

	// whatever subset of variables shows up, the output must not contain a
	// single {{...}} marker
	varSets := []Vars{
		nil,
		{"one": "1"},
		{"two": "yes"},
		{"two": "yes", "three": "3"},
		{"one": "1", "two": "yes", "three": "3", "four": "4", "five": "5"},
	}

	for _, vars := range varSets {
		out, err := Render(pattern, vars)
		assert.NoError(t, err)
		assert.NotRegexp(t, markerRe, out, "vars %v leaked a marker", vars)
	}
}

func TestRenderSkippedBlockInteriorUntouched(t *testing.T) {
	t.Parallel()

	// the variable only exists inside the skipped block, it must not surface
	out, err := Render("x{{#if gone}} {{secret}} {{/if}}y", Vars{"secret": "boo"})
	assert.NoError(t, err)
	assert.Equal(t, "xy", out)
}

func TestParseRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		wantErr error
	}{
		{
			name:    "nested blocks",
			pattern: "{{#if a}}{{#if b}}x{{/if}}{{/if}}",
			wantErr: ErrNestedBlock,
		},
		{
			name:    "stray closer",
			pattern: "x{{/if}}y",
			wantErr: ErrUnmatchedMarker,
		},
		{
			name:    "never closed",
			pattern: "{{#if a}}x",
			wantErr: ErrUnmatchedMarker,
		},
		{
			name:    "unterminated marker",
			pattern: "x{{name",
			wantErr: ErrBadMarker,
		},
		{
			name:    "empty marker",
			pattern: "{{}}",
			wantErr: ErrBadMarker,
		},
		{
			name:    "variable with spaces",
			pattern: "{{two words}}",
			wantErr: ErrBadMarker,
		},
		{
			name:    "block without guard",
			pattern: "{{#if}}x{{/if}}",
			wantErr: ErrBadMarker,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(tc.pattern)
			assert.Error(t, err)
			assert.True(t, errors.Is(err, tc.wantErr), "got %v, want %v", err, tc.wantErr)
		})
	}
}

func TestMustParsePanicsOnBadPattern(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() {
		MustParse("{{#if a}}never closed")
	})
}

func TestContactTemplateScenario(t *testing.T) {
	t.Parallel()

	tmpl, ok := Lookup("contact_client")
	assert.True(t, ok)

	vars := Vars{
		"repairerName": "Atelier Dupont",
		"requestTitle": "Fuite d'eau",
		"requestLink":  "https://www.ouvrio.fr/demandes/req_42",
	}

	t.Run("without phone the phone line is absent", func(t *testing.T) {
		_, html, text := tmpl.Render(vars)
		assert.NotContains(t, html, "Téléphone")
		assert.NotContains(t, text, "Téléphone")
		assert.NotRegexp(t, markerRe, html)
	})

	t.Run("with phone the digits appear verbatim", func(t *testing.T) {
		withPhone := Vars{}
		for k, v := range vars {
			withPhone[k] = v
		}
		withPhone["repairerPhone"] = "0601020304"

		subject, html, text := tmpl.Render(withPhone)
		assert.Contains(t, subject, "Fuite d'eau")
		assert.Contains(t, html, "0601020304")
		assert.Contains(t, text, "0601020304")
		assert.NotRegexp(t, markerRe, html)
		assert.NotRegexp(t, markerRe, text)
	})
}
