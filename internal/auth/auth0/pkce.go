package auth0

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"
)

// CodeChallengeMethod is the only PKCE transformation this client uses.
const CodeChallengeMethod = "S256"

const stateBytes = 32

// PKCEParameters holds the per-attempt secrets of one authorization flow.
// Build it with GenerateParameters; it must not be reused across attempts.
type PKCEParameters struct {
	// CodeVerifier is the secret sent only with the token exchange.
	CodeVerifier string
	// CodeChallenge is base64url(SHA-256(CodeVerifier)) without padding.
	CodeChallenge string
	// CodeChallengeMethod is always "S256".
	CodeChallengeMethod string
	// State is the anti-CSRF value echoed back on the callback.
	State string
}

// GenerateVerifier returns a 43 character verifier built from 32 bytes of CSPRNG output.
func GenerateVerifier() string {
	return oauth2.GenerateVerifier()
}

// GenerateChallenge derives the S256 challenge for verifier.
func GenerateChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// GenerateState returns an unguessable value independent of the verifier.
func GenerateState() (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateParameters creates a fresh verifier, challenge and state for one flow attempt.
func GenerateParameters() (*PKCEParameters, error) {
	verifier := GenerateVerifier()
	state, err := GenerateState()
	if err != nil {
		return nil, err
	}
	return &PKCEParameters{
		CodeVerifier:        verifier,
		CodeChallenge:       GenerateChallenge(verifier),
		CodeChallengeMethod: CodeChallengeMethod,
		State:               state,
	}, nil
}
