package eth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	a, err := Canonicalize([]byte(`{"b": 2, "a": {"y": true, "x": [1, "two"]}}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"x":[1,"two"],"y":true},"b":2}`, string(a))

	b, err := Canonicalize([]byte("{\n  \"a\": {\"x\": [1, \"two\"], \"y\": true},\n  \"b\": 2\n}"))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = Canonicalize([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestHashCanonical(t *testing.T) {
	h1, err := HashCanonical([]byte(`{"name":"DMV","id":7}`))
	require.NoError(t, err)
	h2, err := HashCanonical([]byte(`{ "id": 7, "name": "DMV" }`))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 66)

	assert.Equal(t, Keccak256String(`{"id":7,"name":"DMV"}`), h1)
}

func TestKeccak256Hex(t *testing.T) {
	// keccak256("") is a well known constant.
	assert.Equal(t, "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", Keccak256Hex())
	assert.Equal(t, Keccak256Hex([]byte("ab")), Keccak256Hex([]byte("a"), []byte("b")))
}
