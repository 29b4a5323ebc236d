package password

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyRoundTrip(t *testing.T) {
	blob, err := Hash("Passw0rd1")
	require.NoError(t, err)

	ok, err := Verify("Passw0rd1", blob)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyRejectsWrongPassword(t *testing.T) {
	blob, err := Hash("correct-horse")
	require.NoError(t, err)

	ok, err := Verify("battery-staple", blob)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashProducesUniqueSalts(t *testing.T) {
	first, err := Hash("same-password")
	require.NoError(t, err)
	second, err := Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	for _, blob := range []string{first, second} {
		ok, err := Verify("same-password", blob)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestVerifyMalformedBlob(t *testing.T) {
	cases := map[string]string{
		"no separator":  "deadbeef",
		"empty":         "",
		"extra segment": "aa:bb:cc",
		"short salt":    hex.EncodeToString([]byte("short")) + ":" + strings.Repeat("ab", keyLength),
	}
	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			ok, err := Verify("anything", blob)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestVerifyCorruptHex(t *testing.T) {
	ok, err := Verify("anything", "zz-not-hex:zz-not-hex")
	require.Error(t, err)
	assert.False(t, ok)
}

func TestDeriveIsDeterministicForFixedSalt(t *testing.T) {
	salt := []byte("0123456789abcdef")
	assert.Equal(t, derive("pw", salt), derive("pw", salt))
	assert.NotEqual(t, derive("pw", salt), derive("pw2", salt))
}
