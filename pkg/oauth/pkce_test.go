package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePKCE(t *testing.T) {
	t.Parallel()

	params := GeneratePKCE()

	// 32 random bytes encode to 43 URL-safe characters without padding.
	assert.GreaterOrEqual(t, len(params.CodeVerifier), 43)
	assert.Equal(t, "S256", params.CodeChallengeMethod)

	sum := sha256.Sum256([]byte(params.CodeVerifier))
	expected := base64.RawURLEncoding.EncodeToString(sum[:])
	assert.Equal(t, expected, params.CodeChallenge)
}

func TestGeneratePKCEUniqueness(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		params := GeneratePKCE()
		_, dup := seen[params.CodeVerifier]
		require.False(t, dup, "verifier generated twice")
		seen[params.CodeVerifier] = struct{}{}
	}
}

func TestGenerateState(t *testing.T) {
	t.Parallel()

	first, err := GenerateState()
	require.NoError(t, err)
	second, err := GenerateState()
	require.NoError(t, err)

	// 16 random bytes encode to 22 URL-safe characters.
	assert.Len(t, first, 22)
	assert.NotEqual(t, first, second)

	_, err = base64.RawURLEncoding.DecodeString(first)
	assert.NoError(t, err)
}
