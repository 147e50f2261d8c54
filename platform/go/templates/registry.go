package templates

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/template_registry.schema.json
var registrySchemaJSON []byte

//go:embed defaults/templates.json
var defaultRegistryJSON []byte

// Placeholder declares a named content slot inside a page template.
type Placeholder struct {
	Name   string `json:"name"`
	Widget string `json:"widget,omitempty"`
}

// Template declares a selectable page template and its placeholders.
type Template struct {
	Name         string        `json:"name"`
	Label        string        `json:"label"`
	Placeholders []Placeholder `json:"placeholders,omitempty"`
}

// Registry holds the set of page templates available to the CMS.
type Registry struct {
	defaultName string
	byName      map[string]Template
	order       []string
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func registrySchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("memory://templates/registry.schema.json", bytes.NewReader(registrySchemaJSON)); err != nil {
			schemaErr = fmt.Errorf("register template schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("memory://templates/registry.schema.json")
	})
	return compiledSchema, schemaErr
}

type registryDocument struct {
	Default   string     `json:"default"`
	Templates []Template `json:"templates"`
}

// Load parses and validates a registry definition against the embedded JSON Schema.
func Load(raw []byte) (*Registry, error) {
	schema, err := registrySchema()
	if err != nil {
		return nil, err
	}

	var document any
	if err := json.Unmarshal(raw, &document); err != nil {
		return nil, fmt.Errorf("decode template registry: %w", err)
	}
	if err := schema.Validate(document); err != nil {
		return nil, fmt.Errorf("template registry validation: %w", err)
	}

	var doc registryDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode template registry: %w", err)
	}

	registry := &Registry{
		defaultName: doc.Default,
		byName:      make(map[string]Template, len(doc.Templates)),
		order:       make([]string, 0, len(doc.Templates)),
	}

	for _, tpl := range doc.Templates {
		if _, exists := registry.byName[tpl.Name]; exists {
			return nil, fmt.Errorf("duplicate template %q in registry", tpl.Name)
		}
		registry.byName[tpl.Name] = tpl
		registry.order = append(registry.order, tpl.Name)
	}

	if _, ok := registry.byName[doc.Default]; !ok {
		return nil, fmt.Errorf("default template %q is not declared in the registry", doc.Default)
	}

	return registry, nil
}

// LoadFile reads a registry definition from disk.
func LoadFile(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template registry %s: %w", path, err)
	}
	return Load(raw)
}

// Default returns the registry built from the embedded definition.
func Default() (*Registry, error) {
	return Load(defaultRegistryJSON)
}

// DefaultName returns the name of the fallback template.
func (r *Registry) DefaultName() string {
	return r.defaultName
}

// Has reports whether a template with the given name is declared.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Placeholders returns the placeholder slots of a template.
func (r *Registry) Placeholders(name string) ([]Placeholder, bool) {
	tpl, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return append([]Placeholder(nil), tpl.Placeholders...), true
}

// Choices returns the declared templates in definition order.
func (r *Registry) Choices() []Template {
	choices := make([]Template, 0, len(r.order))
	for _, name := range r.order {
		choices = append(choices, r.byName[name])
	}
	return choices
}
