// Package text expands {placeholder} tokens in category templates.
package text

import (
	"regexp"
	"strings"

	"gitlab.com/tozd/go/errors"
)

var placeholderRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// Vars maps placeholder names (without braces) to their values.
type Vars map[string]string

// ExpansionResult holds the outcome of one expansion
type ExpansionResult struct {
	Template string
	Expanded string
	Used     []string // placeholder names in order of appearance
	WasEmpty []string // placeholders that expanded to an empty string
}

// PlaceholderExpander replaces {name} tokens with values from Vars
type PlaceholderExpander struct {
	known map[string]bool
}

// NewPlaceholderExpander creates an expander that accepts only the given names
func NewPlaceholderExpander(known ...string) *PlaceholderExpander {
	k := make(map[string]bool, len(known))
	for _, n := range known {
		k[n] = true
	}
	return &PlaceholderExpander{known: k}
}

// Placeholders lists the {name} tokens that appear in tmpl.
func Placeholders(tmpl string) []string {
	matches := placeholderRe.FindAllStringSubmatch(tmpl, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// ValidateTemplate rejects unknown placeholders and unbalanced braces.
func (e *PlaceholderExpander) ValidateTemplate(tmpl string) error {
	if strings.TrimSpace(tmpl) == "" {
		return errors.New("template is empty")
	}
	for _, name := range Placeholders(tmpl) {
		if !e.known[name] {
			return errors.Errorf("unknown placeholder {%s}", name)
		}
	}
	stripped := placeholderRe.ReplaceAllString(tmpl, "")
	if strings.ContainsAny(stripped, "{}") {
		return errors.Errorf("unbalanced braces in %q", tmpl)
	}
	return nil
}

// Expand replaces every placeholder. Missing values expand to "".
func (e *PlaceholderExpander) Expand(tmpl string, vars Vars) (*ExpansionResult, error) {
	if err := e.ValidateTemplate(tmpl); err != nil {
		return nil, err
	}

	result := &ExpansionResult{Template: tmpl}
	result.Expanded = placeholderRe.ReplaceAllStringFunc(tmpl, func(tok string) string {
		name := tok[1 : len(tok)-1]
		result.Used = append(result.Used, name)
		v := vars[name]
		if v == "" {
			result.WasEmpty = append(result.WasEmpty, name)
		}
		return v
	})
	return result, nil
}
