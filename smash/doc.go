// Package smash maps loosely typed payloads, such as decoded JSON bodies,
// onto schema-bound key/value instances.
//
// A Schema lists the properties it recognizes. Each property may have
// aliases (external keys that land in the same slot) and a transformer
// applied on every write:
//
//	user := smash.NewSchema("User")
//	user.MustDeclareProperty("name", smash.From("fullName"))
//	user.MustDeclareProperty("count", smash.WithTransformer("int"))
//
//	inst, err := user.New(map[string]any{"fullName": "Bob", "count": "18"})
//	inst.Fetch("name")  // "Bob"
//	inst.Fetch("count") // 18
//
// Unknown keys are dropped unless the schema is strict, in which case
// construction fails with *UnknownKeyError. Reads and Set never fail.
//
// Subtypes created with Extend copy the parent's declarations at that point.
// Later changes on either side stay local, except that DefineTransformer on a
// parent also reaches the subtypes that already exist.
//
// A Schema is itself a Transformer: used as one it turns mappings into
// instances and sequences into []*Instance, which is how nested payloads are
// declared.
package smash

// Logger receives debug output about dropped keys and failed nested
// coercions. Any logger with this method set fits, including the client's.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
}
