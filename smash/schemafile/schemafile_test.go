package schemafile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sutto/api-smith/smash"
)

func TestLoad_BuildsRegistry(t *testing.T) {
	reg, err := Load("testdata/users.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"Address", "Base", "User"}, reg.Names())

	user := reg.MustLookup("User")
	assert.Same(t, reg.MustLookup("Base"), user.Parent())
	assert.True(t, user.Strict(), "strictness is inherited")
	assert.Equal(t, []string{"id", "name", "address", "previous", "tags", "role"}, user.Properties())
	assert.Equal(t, []string{"display_name", "fullName"}, user.Aliases("name"))
	assert.True(t, user.IsRequired("id"))
}

func TestLoad_InstancesFollowDeclarations(t *testing.T) {
	reg, err := Load("testdata/users.yaml")
	require.NoError(t, err)

	inst, err := reg.MustLookup("User").New(map[string]any{
		"ID":       "12",
		"fullName": "Ada Lovelace",
		"address":  map[string]any{"city": "London", "zip": 1815.0},
		"previous": []any{map[string]any{"city": "Paris"}, "skip"},
		"tags":     []any{"Math", "POETRY"},
	})
	require.NoError(t, err)

	assert.Equal(t, 12, inst.Fetch("id"))
	assert.Equal(t, "Ada Lovelace", inst.Fetch("name"))
	assert.Equal(t, "member", inst.Fetch("role"))
	assert.Equal(t, []any{"math", "poetry"}, inst.Fetch("tags"))

	addr, ok := inst.Fetch("address").(*smash.Instance)
	require.True(t, ok)
	assert.Equal(t, "London", addr.Fetch("city"))
	assert.Equal(t, "1815", addr.Fetch("zip"))

	prev, ok := inst.Fetch("previous").([]any)
	require.True(t, ok)
	require.Len(t, prev, 1)
	assert.Equal(t, "Paris", prev[0].(*smash.Instance).Fetch("city"))
}

func TestLoad_StrictAndKeyStyle(t *testing.T) {
	reg, err := Load("testdata/users.yaml")
	require.NoError(t, err)
	user := reg.MustLookup("User")

	inst, err := user.New(map[string]any{"id": 1, "Role": "admin"})
	require.NoError(t, err)
	assert.Equal(t, "admin", inst.Fetch("role"), "snake key_style folds Role to role")

	_, err = user.New(map[string]any{"id": 1, "nickname": "x"})
	assert.ErrorIs(t, err, smash.ErrUnknownKey)

	_, err = user.New(map[string]any{"name": "no id"})
	assert.ErrorIs(t, err, smash.ErrMissingProperty)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "unknown parent",
			doc:  "schemas:\n  A:\n    extends: Nope\n",
			want: `extends unknown schema "Nope"`,
		},
		{
			name: "cycle",
			doc:  "schemas:\n  A:\n    extends: B\n  B:\n    extends: A\n",
			want: "inheritance cycle",
		},
		{
			name: "unknown transformer",
			doc:  "schemas:\n  A:\n    properties:\n      x: {transformer: wat}\n",
			want: `"wat" is neither a coercion nor a schema`,
		},
		{
			name: "bad key style",
			doc:  "schemas:\n  A:\n    key_style: shouting\n",
			want: `unknown key_style "shouting"`,
		},
		{
			name: "bad from",
			doc:  "schemas:\n  A:\n    properties:\n      x: {from: {a: b}}\n",
			want: "expected string or list",
		},
		{
			name: "duplicate",
			doc:  "schemas:\n  A: {}\n  A: {}\n",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_SchemaReferenceDeclaredLater(t *testing.T) {
	doc := `
schemas:
  Order:
    properties:
      lines: {transformer: Line}
  Line:
    properties:
      sku:
      qty: {transformer: int}
`
	reg, err := Parse([]byte(doc))
	require.NoError(t, err)

	order := reg.MustLookup("Order").MustNew(map[string]any{
		"lines": []any{map[string]any{"sku": "A", "qty": "2"}},
	})
	lines := order.Fetch("lines").([]*smash.Instance)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Fetch("qty"))
}

func TestKeyStyle(t *testing.T) {
	for _, style := range []string{"", "string", "lower", "snake", "camel", "normalized", "SNAKE"} {
		fn, err := KeyStyle(style)
		assert.NoError(t, err, style)
		assert.NotNil(t, fn)
	}
	_, err := KeyStyle("kebab")
	assert.Error(t, err)
}
