package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	codec := NewCodec("secret", "jobhive")

	raw, expiresAt, err := codec.Issue("u1", "user@example.com", "seeker", TypeAccess, time.Hour)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := codec.Verify(raw, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, "seeker", claims.Role)
	assert.Equal(t, TypeAccess, claims.TokenType)
}

func TestVerifyRejectsWrongType(t *testing.T) {
	codec := NewCodec("secret", "jobhive")

	access, _, err := codec.Issue("u1", "user@example.com", "seeker", TypeAccess, time.Hour)
	require.NoError(t, err)
	refresh, _, err := codec.Issue("u1", "user@example.com", "seeker", TypeRefresh, time.Hour)
	require.NoError(t, err)

	_, err = codec.Verify(access, TypeRefresh)
	assert.ErrorIs(t, err, ErrWrongType)
	_, err = codec.Verify(refresh, TypeAccess)
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestVerifyRejectsExpired(t *testing.T) {
	clock := time.Now()
	codec := NewCodec("secret", "jobhive", WithNow(func() time.Time { return clock }))

	raw, _, err := codec.Issue("u1", "user@example.com", "seeker", TypeAccess, time.Second)
	require.NoError(t, err)

	clock = clock.Add(2 * time.Second)
	_, err = codec.Verify(raw, TypeAccess)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	codec := NewCodec("secret", "jobhive")
	other := NewCodec("different-secret", "jobhive")

	raw, _, err := other.Issue("u1", "user@example.com", "seeker", TypeAccess, time.Hour)
	require.NoError(t, err)

	_, err = codec.Verify(raw, TypeAccess)
	assert.ErrorIs(t, err, ErrSignature)
}

func TestVerifyRejectsMalformed(t *testing.T) {
	codec := NewCodec("secret", "jobhive")

	for _, raw := range []string{"", "garbage", "a.b", "a.b.c"} {
		_, err := codec.Verify(raw, TypeAccess)
		assert.ErrorIs(t, err, ErrMalformed, "input %q", raw)
	}
}

func TestParseTTL(t *testing.T) {
	cases := []struct {
		spec string
		want time.Duration
	}{
		{"30s", 30 * time.Second},
		{"15m", 15 * time.Minute},
		{"24h", 24 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
	}
	for _, tc := range cases {
		got, err := ParseTTL(tc.spec)
		require.NoError(t, err, tc.spec)
		assert.Equal(t, tc.want, got, tc.spec)
	}
}

func TestParseTTLRejectsBadShapes(t *testing.T) {
	for _, spec := range []string{"", "s", "10", "10w", "m10", "1.5h", "-1h", "10 m"} {
		_, err := ParseTTL(spec)
		assert.Error(t, err, "spec %q", spec)
	}
}

func TestTTLSeconds(t *testing.T) {
	got, err := TTLSeconds("2m")
	require.NoError(t, err)
	assert.Equal(t, int64(120), got)
}
