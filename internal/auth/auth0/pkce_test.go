package auth0

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerifierLength(t *testing.T) {
	for i := 0; i < 20; i++ {
		v := GenerateVerifier()
		require.Len(t, v, 43)
		_, err := base64.RawURLEncoding.DecodeString(v)
		require.NoError(t, err)
	}
}

func TestGenerateChallenge(t *testing.T) {
	// RFC 7636 appendix B.
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", GenerateChallenge(verifier))

	v := GenerateVerifier()
	c := GenerateChallenge(v)
	assert.Len(t, c, 43)
	assert.Equal(t, c, GenerateChallenge(v))

	sum := sha256.Sum256([]byte(v))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), c)
}

func TestGenerateStateUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		s, err := GenerateState()
		require.NoError(t, err)
		require.Len(t, s, 43)
		_, dup := seen[s]
		require.False(t, dup, "state repeated")
		seen[s] = struct{}{}
	}
}

func TestGenerateParameters(t *testing.T) {
	a, err := GenerateParameters()
	require.NoError(t, err)
	b, err := GenerateParameters()
	require.NoError(t, err)

	assert.Equal(t, "S256", a.CodeChallengeMethod)
	assert.Equal(t, GenerateChallenge(a.CodeVerifier), a.CodeChallenge)
	assert.NotEqual(t, a.CodeVerifier, a.State)
	assert.NotEqual(t, a.CodeVerifier, b.CodeVerifier)
	assert.NotEqual(t, a.State, b.State)
}
