// Package openapi derives smash schemas from the component schemas of an
// OpenAPI 3 document.
package openapi

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/Sutto/api-smith/smash"
)

// Load reads, validates and converts the document at path.
func Load(path string) (*smash.Registry, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	return build(loader.Context, doc)
}

// LoadData is Load for an in-memory document.
func LoadData(data []byte) (*smash.Registry, error) {
	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	return build(loader.Context, doc)
}

func build(ctx context.Context, doc *openapi3.T) (*smash.Registry, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("OpenAPI validation error: %w", err)
	}
	return FromDocument(doc)
}

// FromDocument builds one schema per components.schemas entry. Object
// properties become schema properties; scalar types and references pick their
// transformer. Schemas are permissive so new server fields do not break
// clients.
func FromDocument(doc *openapi3.T) (*smash.Registry, error) {
	reg := smash.NewRegistry()
	if doc == nil {
		return nil, fmt.Errorf("nil OpenAPI doc")
	}
	if doc.Components == nil || doc.Components.Schemas == nil {
		return reg, nil
	}

	// deterministic iteration
	names := make([]string, 0, len(doc.Components.Schemas))
	for name := range doc.Components.Schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := reg.Define(name); err != nil {
			return nil, err
		}
	}

	for _, name := range names {
		sr := doc.Components.Schemas[name]
		if sr == nil || sr.Value == nil {
			return nil, fmt.Errorf("components.schemas.%s has no schema value", name)
		}
		if err := declareObject(reg, reg.MustLookup(name), sr.Value); err != nil {
			return nil, fmt.Errorf("components.schemas.%s: %w", name, err)
		}
	}
	return reg, nil
}

func declareObject(reg *smash.Registry, s *smash.Schema, value *openapi3.Schema) error {
	// allOf members contribute their properties, which covers the usual
	// "Base + extra fields" composition.
	for _, part := range value.AllOf {
		if part == nil || part.Value == nil {
			continue
		}
		if err := declareObject(reg, s, part.Value); err != nil {
			return err
		}
	}

	required := make(map[string]bool, len(value.Required))
	for _, n := range value.Required {
		required[n] = true
	}

	props := make([]string, 0, len(value.Properties))
	for k := range value.Properties {
		props = append(props, k)
	}
	sort.Strings(props)

	for _, prop := range props {
		var opts []smash.PropertyOption
		t, err := transformerFor(reg, value.Properties[prop])
		if err != nil {
			return fmt.Errorf("property %q: %w", prop, err)
		}
		if t != nil {
			opts = append(opts, smash.WithTransformer(t))
		}
		if required[prop] {
			opts = append(opts, smash.Required())
		}
		if def := value.Properties[prop]; def != nil && def.Value != nil && def.Value.Default != nil {
			opts = append(opts, smash.WithDefault(def.Value.Default))
		}
		if err := s.DeclareProperty(prop, opts...); err != nil {
			return err
		}
	}
	return nil
}

// transformerFor returns nil for values stored as decoded.
func transformerFor(reg *smash.Registry, sr *openapi3.SchemaRef) (smash.Transformer, error) {
	if sr == nil {
		return nil, nil
	}
	if sr.Ref != "" {
		name, ok := refToComponentName(sr.Ref)
		if !ok {
			return nil, fmt.Errorf("only $ref to #/components/schemas/* is supported; got %q", sr.Ref)
		}
		return lazySchema(reg, name), nil
	}
	if sr.Value == nil {
		return nil, nil
	}

	switch primaryType(sr.Value) {
	case "integer":
		return coercion("int")
	case "number":
		return coercion("float")
	case "boolean":
		return coercion("bool")
	case "string":
		if sr.Value.Format == "date-time" || sr.Value.Format == "date" {
			return coercion("time")
		}
		return nil, nil
	case "array":
		elem, err := transformerFor(reg, sr.Value.Items)
		if err != nil || elem == nil {
			return nil, err
		}
		return smash.SequenceOf(elem), nil
	default:
		return nil, nil
	}
}

func coercion(name string) (smash.Transformer, error) {
	fn, ok := smash.LookupCoercion(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", smash.ErrUnknownCoercion, name)
	}
	return fn, nil
}

func lazySchema(reg *smash.Registry, name string) smash.Transformer {
	return smash.TransformerFunc(func(v any) any {
		s, ok := reg.Lookup(name)
		if !ok {
			return nil
		}
		return s.Transform(v)
	})
}

func primaryType(s *openapi3.Schema) string {
	if s.Type == nil || len(*s.Type) == 0 {
		if len(s.Properties) > 0 {
			return "object"
		}
		return ""
	}
	for _, t := range *s.Type {
		if t != "null" {
			return strings.TrimSpace(t)
		}
	}
	return ""
}

func refToComponentName(ref string) (string, bool) {
	const prefix = "#/components/schemas/"
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(ref, prefix)
	if name == "" {
		return "", false
	}
	return name, true
}
