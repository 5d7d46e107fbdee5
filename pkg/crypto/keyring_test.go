package crypto

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyring(t *testing.T) {
	k1, err := GenerateKey()
	require.NoError(t, err)
	k2, err := GenerateKey()
	require.NoError(t, err)

	t.Run("first key is primary by default", func(t *testing.T) {
		kr, err := ParseKeyring("k1="+k1+", k2="+k2, "")
		require.NoError(t, err)
		assert.Equal(t, "k1", kr.Primary())
		assert.Equal(t, []string{"k1", "k2"}, kr.IDs())
	})

	t.Run("explicit primary", func(t *testing.T) {
		kr, err := ParseKeyring("k1="+k1+",k2="+k2, "k2")
		require.NoError(t, err)
		assert.Equal(t, "k2", kr.Primary())
	})

	t.Run("empty list", func(t *testing.T) {
		kr, err := ParseKeyring("", "")
		require.NoError(t, err)
		assert.Equal(t, 0, kr.Len())
		assert.Empty(t, kr.Primary())
	})

	t.Run("unknown primary", func(t *testing.T) {
		_, err := ParseKeyring("k1="+k1, "missing")
		assert.True(t, errors.Is(err, ErrUnknownKey))
	})

	t.Run("malformed entry", func(t *testing.T) {
		_, err := ParseKeyring(k1, "")
		assert.Error(t, err)
	})

	t.Run("duplicate id", func(t *testing.T) {
		_, err := ParseKeyring("k1="+k1+",k1="+k2, "")
		assert.Error(t, err)
	})
}

func TestKeyring_GetIsolatesKeys(t *testing.T) {
	k1, err := GenerateKey()
	require.NoError(t, err)
	k2, err := GenerateKey()
	require.NoError(t, err)

	kr, err := ParseKeyring("a="+k1+",b="+k2, "a")
	require.NoError(t, err)

	a, err := kr.Get("a")
	require.NoError(t, err)
	b, err := kr.Get("b")
	require.NoError(t, err)

	sealed, err := a.SealString("payload")
	require.NoError(t, err)

	_, err = b.OpenString(sealed)
	assert.Error(t, err)

	_, err = kr.Get("c")
	assert.ErrorIs(t, err, ErrUnknownKey)
}
