package oauth

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/oauth2"

	"github.com/kodustech/mcp-manager/pkg/errors"
)

// PKCEParams holds a PKCE verifier and its S256 challenge.
type PKCEParams struct {
	CodeVerifier        string
	CodeChallenge       string
	CodeChallengeMethod string
}

// GeneratePKCE produces a fresh PKCE verifier/challenge pair.
// Only the S256 challenge method is supported.
func GeneratePKCE() PKCEParams {
	verifier := oauth2.GenerateVerifier()
	return PKCEParams{
		CodeVerifier:        verifier,
		CodeChallenge:       oauth2.S256ChallengeFromVerifier(verifier),
		CodeChallengeMethod: "S256",
	}
}

// GenerateState produces a random state token binding the authorization
// round-trip to the session that initiated it.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", errors.NewInternalError("failed to generate state parameter", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
