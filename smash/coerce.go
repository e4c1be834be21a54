package smash

import "fmt"

// Coerce converts a decoded payload into instances of s. A sequence yields
// []*Instance with non-mapping elements (nested sequences included) dropped,
// a mapping yields one
// *Instance, and anything else yields nil with no error. Instances already
// built from s are passed through as they are.
func (s *Schema) Coerce(value any) (any, error) {
	if items, ok := asSequence(value); ok {
		out := make([]*Instance, 0, len(items))
		for n, item := range items {
			inst, ok, err := s.coerceMapping(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", n, err)
			}
			if ok {
				out = append(out, inst)
			}
		}
		return out, nil
	}

	inst, ok, err := s.coerceMapping(value)
	if err != nil || !ok {
		return nil, err
	}
	return inst, nil
}

// CoerceOne is Coerce restricted to a single mapping.
func (s *Schema) CoerceOne(value any) (*Instance, error) {
	inst, _, err := s.coerceMapping(value)
	return inst, err
}

// CoerceAll is Coerce restricted to sequences. A lone mapping is treated as a
// one-element sequence.
func (s *Schema) CoerceAll(value any) ([]*Instance, error) {
	inst, ok, err := s.coerceMapping(value)
	if err != nil {
		return nil, err
	}
	if ok {
		return []*Instance{inst}, nil
	}
	out, err := s.Coerce(value)
	if err != nil || out == nil {
		return nil, err
	}
	return out.([]*Instance), nil
}

// Transform lets a schema act as a property transformer. Elements or values
// that fail construction are treated as not coercible.
func (s *Schema) Transform(value any) any {
	if items, ok := asSequence(value); ok {
		out := make([]*Instance, 0, len(items))
		for _, item := range items {
			inst, ok, err := s.coerceMapping(item)
			if err != nil {
				s.debug("dropping element", "error", err)
				continue
			}
			if ok {
				out = append(out, inst)
			}
		}
		return out
	}

	inst, ok, err := s.coerceMapping(value)
	if err != nil {
		s.debug("value not coercible", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return inst
}

// coerceMapping builds an instance from a single mapping-like value. The
// boolean reports whether value was a mapping at all. An instance of s is
// returned unchanged so its transformers do not run a second time; instances
// of other schemas are rebuilt from their stored values.
func (s *Schema) coerceMapping(value any) (*Instance, bool, error) {
	if inst, ok := value.(*Instance); ok && inst != nil && inst.Schema() == s {
		return inst, true, nil
	}
	m, ok := asMapping(value)
	if !ok {
		return nil, false, nil
	}
	inst, err := s.New(m)
	if err != nil {
		return nil, true, err
	}
	return inst, true, nil
}

func asSequence(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []map[string]any:
		out := make([]any, len(v))
		for n, m := range v {
			out[n] = m
		}
		return out, true
	case []*Instance:
		out := make([]any, len(v))
		for n, inst := range v {
			out[n] = inst
		}
		return out, true
	default:
		return nil, false
	}
}

func asMapping(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out, true
	case *Instance:
		if v == nil {
			return nil, false
		}
		return v.Map(), true
	default:
		return nil, false
	}
}
