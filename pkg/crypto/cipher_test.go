package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipher_SealOpen(t *testing.T) {
	c, err := NewCipher("correct horse")
	require.NoError(t, err)

	sealed, err := c.Seal("1BVtsOK8Bu...")
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.NotContains(t, sealed, "1BVtsOK8Bu")

	again, err := c.Seal("1BVtsOK8Bu...")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonces are random")

	plain, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "1BVtsOK8Bu...", plain)
}

func TestCipher_PlainValuesPassThrough(t *testing.T) {
	c, err := NewCipher("k")
	require.NoError(t, err)
	plain, err := c.Open("legacy-session")
	require.NoError(t, err)
	assert.Equal(t, "legacy-session", plain)
}

func TestCipher_WrongKey(t *testing.T) {
	a, _ := NewCipher("one")
	b, _ := NewCipher("two")
	sealed, err := a.Seal("secret")
	require.NoError(t, err)

	_, err = b.Open(sealed)
	assert.ErrorIs(t, err, ErrCorrupted)

	_, err = a.Open(sealedPrefix + "!!!")
	assert.ErrorIs(t, err, ErrCorrupted)

	_, err = NewCipher("")
	assert.Error(t, err)
}
