package openapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sutto/api-smith/smash"
)

func TestLoad_ComponentSchemas(t *testing.T) {
	reg, err := Load("testdata/petstore.yaml")
	require.NoError(t, err)

	assert.Equal(t, []string{"Owner", "Pet", "Stamp", "Visit"}, reg.Names())

	pet := reg.MustLookup("Pet")
	assert.False(t, pet.Strict())
	assert.True(t, pet.IsRequired("id"))
	assert.True(t, pet.IsRequired("name"))
	assert.False(t, pet.IsRequired("weight"))
	assert.True(t, pet.HasTransformer("id"))
	assert.False(t, pet.HasTransformer("name"))
	assert.False(t, pet.HasTransformer("tags"), "arrays of plain strings are stored as decoded")

	visit := reg.MustLookup("Visit")
	assert.Equal(t, []string{"at", "reason"}, visit.Properties(), "allOf members contribute properties")
}

func TestLoad_InstancesAreCoerced(t *testing.T) {
	reg, err := Load("testdata/petstore.yaml")
	require.NoError(t, err)

	inst, err := reg.MustLookup("Pet").New(map[string]any{
		"id":         "7",
		"name":       "Rex",
		"weight":     "12.5",
		"vaccinated": "true",
		"born_at":    "2020-01-02T03:04:05Z",
		"owner":      map[string]any{"name": "Sam", "pets": 2.0},
		"tags":       []any{"good"},
		"visits":     []any{map[string]any{"at": "2021-05-06T00:00:00Z", "reason": "checkup"}},
		"extra":      "ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, 7, inst.Fetch("id"))
	assert.Equal(t, 12.5, inst.Fetch("weight"))
	assert.Equal(t, true, inst.Fetch("vaccinated"))
	assert.Equal(t, time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC), inst.Fetch("born_at"))
	assert.Equal(t, "available", inst.Fetch("status"))
	assert.Equal(t, []any{"good"}, inst.Fetch("tags"))

	_, ok := inst.Get("extra")
	assert.False(t, ok)

	owner, ok := inst.Fetch("owner").(*smash.Instance)
	require.True(t, ok)
	assert.Equal(t, 2, owner.Fetch("pets"))

	visits, ok := inst.Fetch("visits").([]any)
	require.True(t, ok)
	require.Len(t, visits, 1)
	assert.Equal(t, "checkup", visits[0].(*smash.Instance).Fetch("reason"))

	_, err = reg.MustLookup("Pet").New(map[string]any{"name": "Nameless"})
	assert.ErrorIs(t, err, smash.ErrMissingProperty)
}

func TestLoadData_Errors(t *testing.T) {
	_, err := LoadData([]byte("not: [valid"))
	assert.Error(t, err)

	external := `
openapi: 3.0.3
info: {title: x, version: "1"}
paths: {}
components:
  schemas:
    A:
      type: object
      properties:
        b:
          $ref: 'other.yaml#/B'
`
	_, err = LoadData([]byte(external))
	assert.Error(t, err)
}

func TestFromDocument_Empty(t *testing.T) {
	reg, err := LoadData([]byte("openapi: 3.0.3\ninfo: {title: x, version: \"1\"}\npaths: {}\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, reg.Len())

	_, err = FromDocument(nil)
	assert.Error(t, err)
}

func TestRefToComponentName(t *testing.T) {
	name, ok := refToComponentName("#/components/schemas/Pet")
	assert.True(t, ok)
	assert.Equal(t, "Pet", name)

	_, ok = refToComponentName("#/definitions/Pet")
	assert.False(t, ok)
	_, ok = refToComponentName("#/components/schemas/")
	assert.False(t, ok)
}
