// Package prompt expands ${field} placeholders in prompt templates from
// session state. Dotted paths (${report_sections.kpis}) reach into
// key-merged map fields, so one template can address individual section
// values without nodes pre-flattening the state.
package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/waveflow-io/waveflow/pkg/waveflow/state"
)

// fieldPattern matches ${field} and ${field.key} placeholders.
var fieldPattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z_][a-zA-Z0-9_]*)*)\}`)

// MissingAction specifies how to handle placeholders with no state value.
type MissingAction int

const (
	// MissingKeep keeps the placeholder as-is. The default.
	MissingKeep MissingAction = iota

	// MissingEmpty replaces the placeholder with an empty string.
	MissingEmpty

	// MissingError makes Render return an UndefinedFieldError.
	MissingError
)

// Template is a parsed prompt template.
// Safe for concurrent use after construction.
type Template struct {
	text    string
	missing MissingAction
}

// Option configures a Template.
type Option func(*Template)

// WithMissingAction sets how placeholders absent from state are handled.
func WithMissingAction(action MissingAction) Option {
	return func(t *Template) {
		t.missing = action
	}
}

// New creates a template from text.
//
// Example:
//
//	tpl := prompt.New("Summarize ${data_summary} for plan ${plan}",
//	    prompt.WithMissingAction(prompt.MissingError))
func New(text string, opts ...Option) *Template {
	t := &Template{text: text, missing: MissingKeep}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Render expands every placeholder against the state.
func (t *Template) Render(s state.State) (string, error) {
	if t.text == "" {
		return "", nil
	}

	var missing []string
	result := fieldPattern.ReplaceAllStringFunc(t.text, func(match string) string {
		path := match[2 : len(match)-1]
		val, ok := lookup(s, path)
		if ok {
			return render(val)
		}
		switch t.missing {
		case MissingEmpty:
			return ""
		case MissingError:
			missing = append(missing, path)
			return match
		default:
			return match
		}
	})

	if len(missing) > 0 {
		return result, &UndefinedFieldError{Paths: missing}
	}
	return result, nil
}

// MustRender expands the template and panics on error. Use with
// MissingKeep or MissingEmpty, which never fail.
func (t *Template) MustRender(s state.State) string {
	result, err := t.Render(s)
	if err != nil {
		panic(fmt.Sprintf("prompt: %v", err))
	}
	return result
}

// Render is a one-shot expansion with MissingKeep semantics.
func Render(text string, s state.State) string {
	result, _ := New(text).Render(s)
	return result
}

// lookup resolves a dotted path against state. The first segment is a
// state field; the rest descend into map values.
func lookup(s state.State, path string) (any, bool) {
	segments := strings.Split(path, ".")
	val, ok := s.Get(segments[0])
	if !ok {
		return nil, false
	}
	for _, seg := range segments[1:] {
		m, ok := val.(map[string]any)
		if !ok {
			return nil, false
		}
		val, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return val, true
}

// render formats a state value for prompt text. Slices join with
// newlines so appended artifact lists read one per line.
func render(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = render(item)
		}
		return strings.Join(parts, "\n")
	case []string:
		return strings.Join(val, "\n")
	default:
		return fmt.Sprintf("%v", val)
	}
}

// UndefinedFieldError is returned when MissingError is set and one or
// more placeholders have no state value.
type UndefinedFieldError struct {
	// Paths lists the unresolved placeholder paths.
	Paths []string
}

// Error implements the error interface.
func (e *UndefinedFieldError) Error() string {
	if len(e.Paths) == 1 {
		return fmt.Sprintf("undefined field: %s", e.Paths[0])
	}
	return fmt.Sprintf("undefined fields: %s", strings.Join(e.Paths, ", "))
}
