package channel

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRef_UnmarshalMixed(t *testing.T) {
	var refs []Ref
	err := json.Unmarshal([]byte(`[{"id":"abc","name":"X","createdAt":"2024-01-01T00:00:00Z"},"def",42]`), &refs)
	require.NoError(t, err)

	assert.Equal(t, []string{"abc", "def", "42"}, IDs(refs))

	rec, ok := refs[0].Record()
	require.True(t, ok)
	assert.Equal(t, "X", rec.Name)

	_, ok = refs[1].Record()
	assert.False(t, ok)
}

func TestRef_UnmarshalRejectsEmpty(t *testing.T) {
	for _, raw := range []string{`""`, `null`, `{"name":"no id"}`, `true`} {
		var r Ref
		assert.Error(t, json.Unmarshal([]byte(raw), &r), raw)
	}
}

func TestRef_MarshalKeepsShape(t *testing.T) {
	b, err := json.Marshal([]Ref{RefID("a"), RefRecord(Channel{ID: "b", Name: "B", Link: "https://t.me/b"})})
	require.NoError(t, err)

	assert.JSONEq(t, `["a",{"id":"b","name":"B","link":"https://t.me/b"}]`, string(b))
}

func TestRef_NumericIDStaysNumeric(t *testing.T) {
	var refs []Ref
	require.NoError(t, json.Unmarshal([]byte(`[5,"-1001",{"id":"7","name":"S"}]`), &refs))

	assert.Equal(t, []string{"5", "-1001", "7"}, IDs(refs))

	b, err := json.Marshal([]Ref{refs[0].Bare(), refs[1].Bare(), refs[2].Bare()})
	require.NoError(t, err)
	assert.JSONEq(t, `[5,"-1001","7"]`, string(b))
}

func TestIDs_NilStaysNil(t *testing.T) {
	assert.Nil(t, IDs(nil))
	assert.Equal(t, []string{}, IDs([]Ref{}))
}
