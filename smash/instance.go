package smash

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/davecgh/go-spew/spew"
)

// Instance is a key/value container bound to a Schema. Every write, including
// those made during construction, resolves the key through the schema and
// applies the property's transformer.
type Instance struct {
	schema *Schema
	keys   []string
	values map[string]any
}

// New builds an instance from input. Defaults are written first, then input
// entries in sorted key order. Under a strict schema an unknown key fails with
// *UnknownKeyError; otherwise it is dropped.
func (s *Schema) New(input map[string]any) (*Instance, error) {
	inst := &Instance{
		schema: s,
		values: make(map[string]any, len(input)),
	}

	defaults, required := s.constructionPlan()
	for _, d := range defaults {
		inst.store(d.key, s.applyTransform(d.key, d.value))
	}

	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := inst.assign(k, input[k]); err != nil {
			return nil, err
		}
	}

	var missing []string
	for _, name := range required {
		if v, ok := inst.values[name]; !ok || v == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingPropertyError{Properties: missing, Schema: s.name}
	}

	return inst, nil
}

// MustNew is New for inputs known to be valid; it panics on error.
func (s *Schema) MustNew(input map[string]any) *Instance {
	inst, err := s.New(input)
	if err != nil {
		panic(err)
	}
	return inst
}

// assign is the shared write path. It only returns an error for unknown keys
// under a strict schema.
func (i *Instance) assign(key string, value any) error {
	resolved, found := i.schema.lookup(key)
	if !found {
		if i.schema.Strict() {
			return &UnknownKeyError{Key: key, Schema: i.schema.name}
		}
		i.schema.debug("dropping unknown key", "key", key)
		return nil
	}
	i.store(resolved, i.schema.applyTransform(resolved, value))
	return nil
}

func (i *Instance) store(key string, value any) {
	if _, exists := i.values[key]; !exists {
		i.keys = append(i.keys, key)
	}
	i.values[key] = value
}

// Get reads by canonical or aliased key. Unknown keys read as absent under
// either policy.
func (i *Instance) Get(key string) (any, bool) {
	resolved, found := i.schema.lookup(key)
	if !found {
		return nil, false
	}
	v, ok := i.values[resolved]
	return v, ok
}

// Fetch is Get without the presence flag.
func (i *Instance) Fetch(key string) any {
	v, _ := i.Get(key)
	return v
}

// Set writes through the schema's key and transform rules and reports
// whether the value was stored. Unknown keys are ignored under either policy.
func (i *Instance) Set(key string, value any) bool {
	resolved, found := i.schema.lookup(key)
	if !found {
		i.schema.debug("ignoring write to unknown key", "key", key, "strict", i.schema.Strict())
		return false
	}
	i.store(resolved, i.schema.applyTransform(resolved, value))
	return true
}

// Schema returns the definition the instance was built from.
func (i *Instance) Schema() *Schema {
	return i.schema
}

// Keys returns the stored canonical keys in first-write order.
func (i *Instance) Keys() []string {
	return append([]string(nil), i.keys...)
}

// Len returns the number of stored properties.
func (i *Instance) Len() int {
	return len(i.keys)
}

// Map returns a shallow copy of the stored values. Nested instances are
// converted recursively.
func (i *Instance) Map() map[string]any {
	out := make(map[string]any, len(i.keys))
	for _, k := range i.keys {
		out[k] = plain(i.values[k])
	}
	return out
}

// MarshalJSON encodes the instance as an object with keys in first-write order.
func (i *Instance) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for n, k := range i.keys {
		if n > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(i.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Dump renders the stored values for debugging.
func (i *Instance) Dump() string {
	return i.schema.name + " " + spew.Sdump(i.Map())
}

func plain(v any) any {
	switch val := v.(type) {
	case *Instance:
		return val.Map()
	case []*Instance:
		out := make([]any, len(val))
		for n, inst := range val {
			out[n] = inst.Map()
		}
		return out
	case []any:
		out := make([]any, len(val))
		for n, item := range val {
			out[n] = plain(item)
		}
		return out
	default:
		return v
	}
}
