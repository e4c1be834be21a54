package smash

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userSchema() *Schema {
	s := NewSchema("User")
	s.MustDeclareProperty("name", From("fullName"))
	s.MustDeclareProperty("count", WithTransformer(ToInt))
	return s
}

func TestNew_CoercesDeclaredValues(t *testing.T) {
	inst, err := userSchema().New(map[string]any{"name": "Bob", "count": "18"})
	require.NoError(t, err)

	assert.Equal(t, "Bob", inst.Fetch("name"))
	assert.Equal(t, 18, inst.Fetch("count"))
}

func TestNew_AliasAndCanonicalShareSlot(t *testing.T) {
	inst, err := userSchema().New(map[string]any{"fullName": "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "Bob", inst.Fetch("name"))

	assert.True(t, inst.Set("fullName", "X"))
	assert.Equal(t, "X", inst.Fetch("name"))
	assert.Equal(t, "X", inst.Fetch("fullName"))
	assert.Equal(t, []string{"name"}, inst.Keys())
}

func TestNew_PermissiveDropsUnknownKeys(t *testing.T) {
	inst, err := userSchema().New(map[string]any{"name": "Bob", "age": 40, "extra": true})
	require.NoError(t, err)

	assert.Equal(t, 1, inst.Len())
	_, ok := inst.Get("age")
	assert.False(t, ok)
}

func TestNew_StrictRejectsUnknownKey(t *testing.T) {
	s := userSchema().SetStrict(true)

	inst, err := s.New(map[string]any{"name": "Bob", "age": 40})
	require.Error(t, err)
	assert.Nil(t, inst)
	assert.True(t, errors.Is(err, ErrUnknownKey))

	var keyErr *UnknownKeyError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, "age", keyErr.Key)
	assert.Equal(t, "User", keyErr.Schema)
	assert.Contains(t, err.Error(), "'age'")
	assert.Contains(t, err.Error(), "User")
}

func TestStrict_ReadsAndWritesOfUnknownKeysAreAbsorbed(t *testing.T) {
	s := userSchema().SetStrict(true)
	inst := s.MustNew(map[string]any{"name": "Bob"})

	v, ok := inst.Get("age")
	assert.Nil(t, v)
	assert.False(t, ok)

	assert.False(t, inst.Set("age", 1))
	assert.Equal(t, 1, inst.Len())
}

func TestSet_RoundTripWithoutTransformer(t *testing.T) {
	inst := userSchema().MustNew(nil)
	values := []any{"text", 3.5, nil, []any{1, "two"}, map[string]any{"k": "v"}}

	for _, v := range values {
		require.True(t, inst.Set("name", v))
		assert.Equal(t, v, inst.Fetch("name"))
	}
}

func TestSet_TransformsOncePerWrite(t *testing.T) {
	calls := 0
	s := NewSchema("Counter")
	s.MustDeclareProperty("n", WithTransformer(func(v any) any {
		calls++
		return v.(int) * 2
	}))

	inst := s.MustNew(map[string]any{"n": 2})
	assert.Equal(t, 1, calls)

	inst.Set("n", 5)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 10, inst.Fetch("n"))
	assert.Equal(t, 10, inst.Fetch("n"))
	assert.Equal(t, 2, calls, "reads must not transform")
}

func TestNew_InputOrderDoesNotMatter(t *testing.T) {
	s := NewSchema("Doc")
	s.MustDeclareProperty("title", From("heading"))

	for i := 0; i < 20; i++ {
		inst := s.MustNew(map[string]any{"heading": "from alias", "title": "canonical", "zzz": 1})
		assert.Equal(t, "canonical", inst.Fetch("title"))
	}
}

func TestNew_AppliesDefaultsThroughTransformer(t *testing.T) {
	s := NewSchema("Job")
	s.MustDeclareProperty("retries", WithDefault("3"), WithTransformer("int"))
	s.MustDeclareProperty("queue", WithDefault("default"))

	inst := s.MustNew(nil)
	assert.Equal(t, 3, inst.Fetch("retries"))
	assert.Equal(t, "default", inst.Fetch("queue"))

	inst = s.MustNew(map[string]any{"queue": "fast"})
	assert.Equal(t, "fast", inst.Fetch("queue"))
	assert.Equal(t, []string{"retries", "queue"}, inst.Keys())
}

func TestNew_MissingRequiredProperty(t *testing.T) {
	s := NewSchema("Account")
	s.MustDeclareProperty("id", Required(), From("ID"))
	s.MustDeclareProperty("email", Required())

	_, err := s.New(map[string]any{"ID": 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingProperty)

	var missing *MissingPropertyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"email"}, missing.Properties)

	_, err = s.New(map[string]any{"id": 1, "email": nil})
	assert.ErrorIs(t, err, ErrMissingProperty)

	_, err = s.New(map[string]any{"id": 1, "email": "a@b.c"})
	assert.NoError(t, err)
}

func TestKeyTransformationHook(t *testing.T) {
	s := NewSchema("Snake")
	s.SetKeyTransformation(SnakeCaseKey)
	s.MustDeclareProperty("first_name")
	s.MustDeclareProperty("id", From("UserID"))

	inst := s.MustNew(map[string]any{"firstName": "Ada", "UserID": 9})
	assert.Equal(t, "Ada", inst.Fetch("first_name"))
	assert.Equal(t, "Ada", inst.Fetch("FirstName"))
	assert.Equal(t, 9, inst.Fetch("id"), "aliases win over the hook")
}

func TestKeyTransformationHook_CustomStripsDigits(t *testing.T) {
	s := NewSchema("Digits")
	s.SetKeyTransformation(func(key string) string {
		return strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return -1
			}
			return r
		}, key)
	})
	s.MustDeclareProperty("line")

	inst := s.MustNew(map[string]any{"line1": "a"})
	assert.Equal(t, "a", inst.Fetch("line"))

	s.SetKeyTransformation(nil)
	assert.Nil(t, s.MustNew(map[string]any{"line1": "a"}).Fetch("line"))
}

func TestInstance_MapAndJSON(t *testing.T) {
	address := NewSchema("Address")
	address.MustDeclareProperty("city")

	person := NewSchema("Person")
	person.MustDeclareProperty("name")
	person.MustDeclareProperty("home", WithTransformer(address))
	person.MustDeclareProperty("past", WithTransformer(address))

	inst := person.MustNew(map[string]any{
		"name": "Ada",
		"home": map[string]any{"city": "London", "zip": "x"},
		"past": []any{map[string]any{"city": "Paris"}, "junk"},
	})

	assert.Equal(t, map[string]any{
		"name": "Ada",
		"home": map[string]any{"city": "London"},
		"past": []any{map[string]any{"city": "Paris"}},
	}, inst.Map())

	data, err := json.Marshal(inst)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ada","home":{"city":"London"},"past":[{"city":"Paris"}]}`, string(data))
	assert.Equal(t, `{"home":`, string(data[:8]), "keys are written in sorted construction order")
}

func TestInstance_Dump(t *testing.T) {
	inst := userSchema().MustNew(map[string]any{"name": "Bob"})
	out := inst.Dump()

	assert.True(t, strings.HasPrefix(out, "User "))
	assert.Contains(t, out, "Bob")
}

type recordingLogger struct {
	messages []string
}

func (l *recordingLogger) Debug(msg string, keyvals ...interface{}) {
	l.messages = append(l.messages, msg)
}

func TestSchemaLogger_ReportsDroppedKeys(t *testing.T) {
	logger := &recordingLogger{}
	s := userSchema().SetLogger(logger)

	inst := s.MustNew(map[string]any{"bogus": 1})
	inst.Set("other", 2)

	assert.Equal(t, []string{"dropping unknown key", "ignoring write to unknown key"}, logger.messages)
}
