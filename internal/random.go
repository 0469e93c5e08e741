package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

const (
	challengeIDSize       = 16
	challengeSecretSize   = 32
	challengeTokenRawSize = challengeIDSize + challengeSecretSize
	csrfTokenSize         = 32
)

var errInvalidChallengeToken = errors.New("invalid challenge token")

// ChallengeToken is an opaque pending-challenge credential. Only ID and the
// digest of the secret part are stored server-side.
type ChallengeToken struct {
	ID         string
	Token      string
	SecretHash [32]byte
}

// NewChallengeToken returns a token of the form base64url(id || secret).
func NewChallengeToken() (ChallengeToken, error) {
	var raw [challengeTokenRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return ChallengeToken{}, err
	}
	return ChallengeToken{
		ID:         base64.RawURLEncoding.EncodeToString(raw[:challengeIDSize]),
		Token:      base64.RawURLEncoding.EncodeToString(raw[:]),
		SecretHash: sha256.Sum256(raw[challengeIDSize:]),
	}, nil
}

// ParseChallengeToken splits a token into its lookup id and secret digest.
func ParseChallengeToken(token string) (string, [32]byte, error) {
	var hash [32]byte
	if len(token) != base64.RawURLEncoding.EncodedLen(challengeTokenRawSize) {
		return "", hash, errInvalidChallengeToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != challengeTokenRawSize {
		return "", hash, errInvalidChallengeToken
	}
	return base64.RawURLEncoding.EncodeToString(raw[:challengeIDSize]), sha256.Sum256(raw[challengeIDSize:]), nil
}

// NewCSRFToken returns a random base64url token.
func NewCSRFToken() (string, error) {
	var raw [csrfTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}
