package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashWithDomainNullSeparator(t *testing.T) {
	// "foo" + 0x00 + "bar" must differ from "foob" + 0x00 + "ar".
	assert.NotEqual(t, HashWithDomain("foo", []byte("bar")), HashWithDomain("foob", []byte("ar")))
}

func TestHashWithDomainSeparatesDomains(t *testing.T) {
	data := []byte(`{"componentKey":"card"}`)

	semantic := HashWithDomain(DomainSemanticCore, data)
	assert.Len(t, semantic, 64)
	assert.NotEqual(t, semantic, SHA256Hex(data))
	assert.NotEqual(t, semantic, HashWithDomain("rtgl/semantic-core/v2", data))
}

func TestSHA256Hex(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", SHA256Hex(nil))
}

func TestCanonicalDigestIgnoresKeyOrderAndSortedArrays(t *testing.T) {
	a := IRObject{"b": IRInt(1), "a": IRString("x")}
	b := IRObject{"a": IRString("x"), "b": IRInt(1)}

	da, err := CanonicalDigest(a)
	require.NoError(t, err)
	db, err := CanonicalDigest(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)

	data, err := MarshalCanonical(a)
	require.NoError(t, err)
	assert.Equal(t, SHA256Hex(data), da)
}

func TestCanonicalDigestChangesWithContent(t *testing.T) {
	da, err := CanonicalDigest(IRObject{"a": IRInt(1)})
	require.NoError(t, err)
	db, err := CanonicalDigest(IRObject{"a": IRInt(2)})
	require.NoError(t, err)
	assert.NotEqual(t, da, db)
}
