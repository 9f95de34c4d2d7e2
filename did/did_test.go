package did

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDID(t *testing.T) {
	d := NewDefault("icJ4z2DULrHEzYSvjKNJpKyhqFDxvYV7pN")

	assert.Equal(t, "did:elastos:icJ4z2DULrHEzYSvjKNJpKyhqFDxvYV7pN", d.String())
	assert.False(t, d.IsZero())
	assert.True(t, DID{}.IsZero())
	assert.Equal(t, "", DID{}.String())

	parsed := MustParse(d.String())
	assert.True(t, d.Equal(parsed))
	assert.Equal(t, d, parsed)

	other := NewDefault("icJ4z2DULrHEzYSvjKNJpKyhqFDxvYV7pO")
	assert.Equal(t, -1, d.Compare(other))
	assert.Equal(t, 1, other.Compare(d))
	assert.Equal(t, 0, d.Compare(parsed))

	u := d.URL("primary")
	assert.Equal(t, d, u.DID())
	assert.Equal(t, "did:elastos:icJ4z2DULrHEzYSvjKNJpKyhqFDxvYV7pN#primary", u.String())
}

func TestDIDJSON(t *testing.T) {
	type holder struct {
		ID  DID    `json:"id"`
		Key DIDURL `json:"key"`
	}

	in := holder{
		ID:  MustParse("did:elastos:abc"),
		Key: MustParseURL("did:elastos:abc#key-1"),
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"did:elastos:abc","key":"did:elastos:abc#key-1"}`, string(data))

	var out holder
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.ID, out.ID)
	assert.True(t, in.Key.Equal(out.Key))

	err = json.Unmarshal([]byte(`{"id":"did:other:abc"}`), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal DID")
}

func TestDIDURLAccessors(t *testing.T) {
	u := MustParseURL("did:elastos:abc;v=1/p?a=1&b#f")

	v, ok := u.Param("v")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	_, ok = u.Param("missing")
	assert.False(t, ok)

	b, ok := u.QueryParam("b")
	assert.True(t, ok)
	assert.Equal(t, "", b)

	assert.True(t, u.HasFragment())
	assert.False(t, u.IsZero())
	assert.True(t, DIDURL{}.IsZero())

	other := MustParseURL("did:elastos:abc;v=1/p?a=1&b#g")
	assert.False(t, u.Equal(other))
	assert.Equal(t, -1, u.Compare(other))

	// Accessors return copies.
	q := u.Query()
	q[0].Value = "changed"
	a, _ := u.QueryParam("a")
	assert.Equal(t, "1", a)
}
