// Package schemafile declares smash schemas from YAML documents.
//
//	schemas:
//	  Base:
//	    strict: true
//	    properties:
//	      id: {transformer: int, required: true}
//	  User:
//	    extends: Base
//	    key_style: snake
//	    properties:
//	      name: {from: [fullName, display_name]}
//	      address: {transformer: Address}
//	      tags: {transformer: "[]lower"}
//	  Address:
//	    properties:
//	      city: {}
//
// A transformer names a coercion or another schema from the same document.
// A "[]" prefix applies it to each element of a sequence.
package schemafile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Sutto/api-smith/smash"
)

// File is the decoded form of a schema document.
type File struct {
	Schemas Schemas `yaml:"schemas"`
}

// Schemas keeps document order.
type Schemas []NamedSchema

// NamedSchema is one entry under "schemas".
type NamedSchema struct {
	Name string
	Def  SchemaDef
}

// SchemaDef describes one schema.
type SchemaDef struct {
	Extends    string     `yaml:"extends"`
	Strict     *bool      `yaml:"strict"`
	KeyStyle   string     `yaml:"key_style"`
	Properties Properties `yaml:"properties"`
}

// Properties keeps declaration order.
type Properties []NamedProperty

// NamedProperty is one entry under "properties".
type NamedProperty struct {
	Name string
	Def  PropertyDef
}

// PropertyDef describes one property.
type PropertyDef struct {
	From        StringOrList `yaml:"from"`
	Transformer string       `yaml:"transformer"`
	Default     any          `yaml:"default"`
	Required    bool         `yaml:"required"`
}

// StringOrList accepts either a scalar or a sequence of strings.
type StringOrList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringOrList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var str string
		if err := node.Decode(&str); err != nil {
			return err
		}
		if str == "" {
			*s = nil
		} else {
			*s = StringOrList{str}
		}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list", node.Line)
	}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Schemas) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: schemas must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var entry NamedSchema
		entry.Name = node.Content[i].Value
		if err := node.Content[i+1].Decode(&entry.Def); err != nil {
			return fmt.Errorf("schema %q: %w", entry.Name, err)
		}
		*s = append(*s, entry)
	}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler. A null property body declares a
// plain property.
func (p *Properties) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: properties must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var entry NamedProperty
		entry.Name = node.Content[i].Value
		if body := node.Content[i+1]; body.Tag != "!!null" {
			if err := body.Decode(&entry.Def); err != nil {
				return fmt.Errorf("property %q: %w", entry.Name, err)
			}
		}
		*p = append(*p, entry)
	}
	return nil
}

// Load reads and builds the schema document at path.
func Load(path string) (*smash.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Parse decodes a schema document and builds it into a new registry.
func Parse(data []byte) (*smash.Registry, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse schema file: %w", err)
	}
	reg := smash.NewRegistry()
	if err := f.Build(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// Build declares every schema of f in reg. Parents are built before their
// subtypes so the copy taken by Extend includes the parent's properties.
func (f *File) Build(reg *smash.Registry) error {
	order, err := f.buildOrder()
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(f.Schemas))
	for _, ns := range f.Schemas {
		known[ns.Name] = true
	}

	for _, ns := range order {
		var s *smash.Schema
		if ns.Def.Extends != "" {
			s, err = reg.Extend(ns.Name, ns.Def.Extends)
		} else {
			s, err = reg.Define(ns.Name)
		}
		if err != nil {
			return err
		}

		if ns.Def.Strict != nil {
			s.SetStrict(*ns.Def.Strict)
		}
		if ns.Def.KeyStyle != "" {
			fn, err := KeyStyle(ns.Def.KeyStyle)
			if err != nil {
				return fmt.Errorf("schema %q: %w", ns.Name, err)
			}
			s.SetKeyTransformation(fn)
		}

		for _, np := range ns.Def.Properties {
			opts, err := propertyOptions(reg, known, np.Def)
			if err != nil {
				return fmt.Errorf("schema %q property %q: %w", ns.Name, np.Name, err)
			}
			if err := s.DeclareProperty(np.Name, opts...); err != nil {
				return fmt.Errorf("schema %q: %w", ns.Name, err)
			}
		}
	}
	return nil
}

func (f *File) buildOrder() ([]NamedSchema, error) {
	byName := make(map[string]NamedSchema, len(f.Schemas))
	for _, ns := range f.Schemas {
		if _, dup := byName[ns.Name]; dup {
			return nil, fmt.Errorf("schema %q declared twice", ns.Name)
		}
		byName[ns.Name] = ns
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(f.Schemas))
	order := make([]NamedSchema, 0, len(f.Schemas))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("inheritance cycle: %s", strings.Join(append(path, name), " -> "))
		}
		ns, ok := byName[name]
		if !ok {
			return fmt.Errorf("schema %q extends unknown schema %q", path[len(path)-1], name)
		}
		state[name] = visiting
		if ns.Def.Extends != "" {
			if err := visit(ns.Def.Extends, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = done
		order = append(order, ns)
		return nil
	}

	for _, ns := range f.Schemas {
		if err := visit(ns.Name, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func propertyOptions(reg *smash.Registry, known map[string]bool, def PropertyDef) ([]smash.PropertyOption, error) {
	var opts []smash.PropertyOption
	if len(def.From) > 0 {
		opts = append(opts, smash.From(def.From...))
	}
	if def.Default != nil {
		opts = append(opts, smash.WithDefault(def.Default))
	}
	if def.Required {
		opts = append(opts, smash.Required())
	}
	if def.Transformer != "" {
		t, err := resolveTransformer(reg, known, def.Transformer)
		if err != nil {
			return nil, err
		}
		opts = append(opts, smash.WithTransformer(t))
	}
	return opts, nil
}

// resolveTransformer binds schema references lazily so a property may name a
// schema declared further down the document.
func resolveTransformer(reg *smash.Registry, known map[string]bool, name string) (smash.Transformer, error) {
	if elem, ok := strings.CutPrefix(name, "[]"); ok {
		t, err := resolveTransformer(reg, known, elem)
		if err != nil {
			return nil, err
		}
		return smash.SequenceOf(t), nil
	}

	if known[name] {
		return smash.TransformerFunc(func(v any) any {
			return reg.MustLookup(name).Transform(v)
		}), nil
	}

	fn, ok := smash.LookupCoercion(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q is neither a coercion nor a schema", smash.ErrUnknownCoercion, name)
	}
	return fn, nil
}

// KeyStyle maps a key_style value to its hook.
func KeyStyle(style string) (smash.KeyFunc, error) {
	switch strings.ToLower(style) {
	case "", "string", "identity":
		return smash.StringKey, nil
	case "lower":
		return smash.LowerCaseKey, nil
	case "snake":
		return smash.SnakeCaseKey, nil
	case "camel":
		return smash.CamelCaseKey, nil
	case "normalized":
		return smash.NormalizedKey, nil
	default:
		return nil, fmt.Errorf("unknown key_style %q", style)
	}
}
