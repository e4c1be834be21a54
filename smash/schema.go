package smash

import (
	"fmt"
	"sort"
	"sync"
)

// Schema declares the properties a family of instances recognizes, the
// external keys that alias them, the transformers applied on write and the
// policy for unknown keys.
//
// A Schema is configured during setup and then shared read-only by every
// Instance built from it. Subtypes created with Extend start from a copy of
// the parent's state; the only live link between them is transformer
// registration, which fans out to the children that exist at the time of the
// call.
type Schema struct {
	mu sync.RWMutex

	name         string
	properties   map[string]struct{}
	order        []string
	keyMapping   map[string]string
	transformers map[string]Transformer
	defaults     map[string]any
	required     map[string]struct{}
	strict       bool
	keyFunc      KeyFunc
	logger       Logger

	parent   *Schema
	children []*Schema
}

// NewSchema returns an empty permissive schema.
func NewSchema(name string) *Schema {
	return &Schema{
		name:         name,
		properties:   make(map[string]struct{}),
		keyMapping:   make(map[string]string),
		transformers: make(map[string]Transformer),
		defaults:     make(map[string]any),
		required:     make(map[string]struct{}),
		keyFunc:      StringKey,
	}
}

// Extend creates a subtype. The child receives an independent copy of the
// parent's registry as it stands now and is remembered so later transformer
// registrations reach it.
func (s *Schema) Extend(name string) *Schema {
	s.mu.Lock()
	defer s.mu.Unlock()

	child := &Schema{
		name:         name,
		properties:   make(map[string]struct{}, len(s.properties)),
		order:        append([]string(nil), s.order...),
		keyMapping:   make(map[string]string, len(s.keyMapping)),
		transformers: make(map[string]Transformer, len(s.transformers)),
		defaults:     make(map[string]any, len(s.defaults)),
		required:     make(map[string]struct{}, len(s.required)),
		strict:       s.strict,
		keyFunc:      s.keyFunc,
		logger:       s.logger,
		parent:       s,
	}
	for k := range s.properties {
		child.properties[k] = struct{}{}
	}
	for k, v := range s.keyMapping {
		child.keyMapping[k] = v
	}
	for k, v := range s.transformers {
		child.transformers[k] = v
	}
	for k, v := range s.defaults {
		child.defaults[k] = v
	}
	for k := range s.required {
		child.required[k] = struct{}{}
	}

	s.children = append(s.children, child)
	return child
}

// Name returns the type name used in error messages.
func (s *Schema) Name() string {
	return s.name
}

// Parent returns the schema this one was extended from, or nil.
func (s *Schema) Parent() *Schema {
	return s.parent
}

// PropertyOption configures a property declaration.
type PropertyOption func(*propertyConfig)

type propertyConfig struct {
	from        []string
	transformer any
	hasDefault  bool
	def         any
	required    bool
}

// From registers external keys that resolve to the declared property.
func From(aliases ...string) PropertyOption {
	return func(c *propertyConfig) {
		c.from = append(c.from, aliases...)
	}
}

// WithTransformer attaches a transformer. The source accepts the same values
// as DefineTransformer.
func WithTransformer(source any) PropertyOption {
	return func(c *propertyConfig) {
		c.transformer = source
	}
}

// WithDefault stores v under the property whenever an instance is built
// without it. Defaults go through the property's transformer like any write.
func WithDefault(v any) PropertyOption {
	return func(c *propertyConfig) {
		c.hasDefault = true
		c.def = v
	}
}

// Required makes construction fail when the property ends up unset.
func Required() PropertyOption {
	return func(c *propertyConfig) {
		c.required = true
	}
}

// DeclareProperty registers name as a canonical property. Declaring an
// existing property again overwrites overlapping aliases.
func (s *Schema) DeclareProperty(name string, opts ...PropertyOption) error {
	cfg := &propertyConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	s.mu.Lock()
	if _, exists := s.properties[name]; !exists {
		s.order = append(s.order, name)
	}
	s.properties[name] = struct{}{}
	for _, alias := range cfg.from {
		s.keyMapping[alias] = name
	}
	if cfg.hasDefault {
		s.defaults[name] = cfg.def
	}
	if cfg.required {
		s.required[name] = struct{}{}
	}
	s.mu.Unlock()

	if cfg.transformer != nil {
		if err := s.DefineTransformer(name, cfg.transformer); err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
	}
	return nil
}

// MustDeclareProperty is DeclareProperty for static setup code; it panics on
// error.
func (s *Schema) MustDeclareProperty(name string, opts ...PropertyOption) *Schema {
	if err := s.DeclareProperty(name, opts...); err != nil {
		panic(err)
	}
	return s
}

// DefineTransformer stores the transformer for a property and pushes the same
// registration down to every subtype extended from s so far, recursively.
//
// source may be a Transformer, a func(any) any, or the name of a registered
// coercion. A nil source or empty name returns ErrNoTransformation.
func (s *Schema) DefineTransformer(name string, source any) error {
	t, err := resolveTransformer(source)
	if err != nil {
		return err
	}
	s.setTransformer(name, t)
	return nil
}

func (s *Schema) setTransformer(name string, t Transformer) {
	s.mu.Lock()
	s.transformers[name] = t
	children := append([]*Schema(nil), s.children...)
	s.mu.Unlock()

	for _, child := range children {
		child.setTransformer(name, t)
	}
}

// IsKnownProperty reports whether key is a canonical property or a
// registered alias.
func (s *Schema) IsKnownProperty(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isKnown(key)
}

func (s *Schema) isKnown(key string) bool {
	if _, ok := s.properties[key]; ok {
		return true
	}
	_, ok := s.keyMapping[key]
	return ok
}

// Strict reports whether unknown keys fail construction.
func (s *Schema) Strict() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.strict
}

// SetStrict switches the unknown-key policy of this schema only.
func (s *Schema) SetStrict(strict bool) *Schema {
	s.mu.Lock()
	s.strict = strict
	s.mu.Unlock()
	return s
}

// SetKeyTransformation replaces the hook used for keys that are not aliases.
// A nil hook restores StringKey.
func (s *Schema) SetKeyTransformation(fn KeyFunc) *Schema {
	if fn == nil {
		fn = StringKey
	}
	s.mu.Lock()
	s.keyFunc = fn
	s.mu.Unlock()
	return s
}

// SetLogger enables debug output for dropped keys.
func (s *Schema) SetLogger(logger Logger) *Schema {
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
	return s
}

// Properties returns the canonical property names in declaration order.
func (s *Schema) Properties() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Aliases returns the external keys registered for property, sorted.
func (s *Schema) Aliases(property string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for alias, target := range s.keyMapping {
		if target == property {
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out
}

// HasTransformer reports whether writes to property are transformed.
func (s *Schema) HasTransformer(property string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.transformers[property]
	return ok
}

// IsRequired reports whether property must be set after construction.
func (s *Schema) IsRequired(property string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.required[property]
	return ok
}

// resolveKey maps an external or canonical key to the storage key.
func (s *Schema) resolveKey(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if mapped, ok := s.keyMapping[key]; ok {
		return mapped
	}
	return s.keyFunc(key)
}

func (s *Schema) applyTransform(key string, value any) any {
	s.mu.RLock()
	t, ok := s.transformers[key]
	s.mu.RUnlock()
	if !ok {
		return value
	}
	return t.Transform(value)
}

// lookup resolves key and reports whether the result is known. Unknown keys
// come back as a strictness-tagged miss instead of an error.
func (s *Schema) lookup(key string) (resolved string, found bool) {
	resolved = s.resolveKey(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return resolved, s.isKnown(resolved)
}

func (s *Schema) debug(msg string, keyvals ...any) {
	s.mu.RLock()
	logger := s.logger
	s.mu.RUnlock()
	if logger != nil {
		logger.Debug(msg, append([]any{"schema", s.name}, keyvals...)...)
	}
}

type defaultValue struct {
	key   string
	value any
}

// constructionPlan returns defaults in declaration order and the sorted
// required set.
func (s *Schema) constructionPlan() ([]defaultValue, []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var defaults []defaultValue
	for _, name := range s.order {
		if v, ok := s.defaults[name]; ok {
			defaults = append(defaults, defaultValue{key: name, value: v})
		}
	}
	required := make([]string, 0, len(s.required))
	for k := range s.required {
		required = append(required, k)
	}
	sort.Strings(required)
	return defaults, required
}
