package smash

import (
	"fmt"
	"strings"
)

// Transformer converts a raw value into the form stored on an instance.
type Transformer interface {
	Transform(value any) any
}

// TransformerFunc adapts a plain function to Transformer.
type TransformerFunc func(value any) any

// Transform calls f(value).
func (f TransformerFunc) Transform(value any) any {
	return f(value)
}

// resolveTransformer turns a transformer source into a Transformer. Strings
// name a registered coercion.
func resolveTransformer(source any) (Transformer, error) {
	switch src := source.(type) {
	case nil:
		return nil, ErrNoTransformation
	case *Schema:
		if src == nil {
			return nil, ErrNoTransformation
		}
		return src, nil
	case Transformer:
		return src, nil
	case func(any) any:
		if src == nil {
			return nil, ErrNoTransformation
		}
		return TransformerFunc(src), nil
	case string:
		name := strings.TrimSpace(src)
		if name == "" {
			return nil, ErrNoTransformation
		}
		fn, ok := LookupCoercion(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCoercion, name)
		}
		return fn, nil
	default:
		return nil, fmt.Errorf("%w: unsupported transformer source %T", ErrNoTransformation, source)
	}
}

// SequenceOf applies t to each element of a sequence and drops nil results.
// Non-sequence values are handed to t directly.
func SequenceOf(t Transformer) Transformer {
	return TransformerFunc(func(value any) any {
		items, ok := value.([]any)
		if !ok {
			return t.Transform(value)
		}
		out := make([]any, 0, len(items))
		for _, item := range items {
			if v := t.Transform(item); v != nil {
				out = append(out, v)
			}
		}
		return out
	})
}
