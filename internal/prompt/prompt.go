// Package prompt renders the named prompt templates the engine sends to the
// model. Templates ship embedded and can be overridden from a directory.
package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// ErrPromptConfig is returned for unknown templates, missing variables and
// templates that fail to parse.
var ErrPromptConfig = errors.New("prompt configuration error")

// Template names used by the engine.
const (
	Intent     = "intent"
	Chat       = "chat"
	Exercise   = "exercise"
	Assessment = "assessment"
	Evaluate   = "evaluate"
	Welcome    = "welcome"
	Exposition = "exposition"
)

//go:embed templates.yaml
var embedded []byte

type spec struct {
	System   string   `yaml:"system"`
	Required []string `yaml:"required"`
	Text     string   `yaml:"text"`
}

type entry struct {
	system   string
	required []string
	tmpl     *template.Template
}

// Registry holds parsed templates. It is immutable after construction and
// safe for concurrent use.
type Registry struct {
	entries map[string]*entry
}

// Default returns the registry built from the embedded templates.
func Default() *Registry {
	r, err := Parse(embedded)
	if err != nil {
		panic(fmt.Sprintf("embedded prompt templates: %v", err))
	}
	return r
}

// Load builds a registry from the embedded templates, replacing the body of
// any template that has a <name>.tmpl file in overrideDir. An empty dir
// means no overrides.
func Load(overrideDir string) (*Registry, error) {
	r, err := Parse(embedded)
	if err != nil {
		return nil, err
	}
	if overrideDir == "" {
		return r, nil
	}

	for name, e := range r.entries {
		body, err := os.ReadFile(filepath.Join(overrideDir, name+".tmpl"))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read override for %q: %w", name, err)
		}
		tmpl, err := parseBody(name, string(body))
		if err != nil {
			return nil, err
		}
		e.tmpl = tmpl
	}
	return r, nil
}

// Parse builds a registry from a YAML document mapping names to templates.
func Parse(doc []byte) (*Registry, error) {
	var specs map[string]spec
	if err := yaml.Unmarshal(doc, &specs); err != nil {
		return nil, fmt.Errorf("%w: decode templates: %v", ErrPromptConfig, err)
	}

	r := &Registry{entries: make(map[string]*entry, len(specs))}
	for name, s := range specs {
		tmpl, err := parseBody(name, s.Text)
		if err != nil {
			return nil, err
		}
		r.entries[name] = &entry{
			system:   strings.TrimSpace(s.System),
			required: s.Required,
			tmpl:     tmpl,
		}
	}
	return r, nil
}

func parseBody(name, body string) (*template.Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse template %q: %v", ErrPromptConfig, name, err)
	}
	return tmpl, nil
}

// Render executes the named template with vars. Every variable the template
// declares as required must be present, even if empty.
func (r *Registry) Render(name string, vars map[string]any) (string, error) {
	e, ok := r.entries[name]
	if !ok {
		return "", fmt.Errorf("%w: unknown template %q", ErrPromptConfig, name)
	}

	var missing []string
	for _, key := range e.required {
		if _, ok := vars[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: template %q missing %s", ErrPromptConfig, name, strings.Join(missing, ", "))
	}

	var b strings.Builder
	if err := e.tmpl.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("%w: render %q: %v", ErrPromptConfig, name, err)
	}
	return strings.TrimSpace(b.String()), nil
}

// System returns the system prompt of the named template, which may be empty.
func (r *Registry) System(name string) (string, error) {
	e, ok := r.entries[name]
	if !ok {
		return "", fmt.Errorf("%w: unknown template %q", ErrPromptConfig, name)
	}
	return e.system, nil
}

// Names lists the registered templates in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
