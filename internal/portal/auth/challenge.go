package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
)

const (
	stateLength   = 32
	stateAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// NewState returns a random anti-forgery token for the authorize request.
// It is unrelated to the login form's request-verification token.
func NewState() string {
	// Largest multiple of the alphabet size that fits in a byte; bytes above it
	// are rejected so every character is equally likely.
	const limit = 256 - 256%len(stateAlphabet)

	out := make([]byte, 0, stateLength)
	buf := make([]byte, stateLength*2)
	for len(out) < stateLength {
		_, _ = rand.Read(buf)
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, stateAlphabet[int(b)%len(stateAlphabet)])
			if len(out) == stateLength {
				break
			}
		}
	}
	return string(out)
}

// NewDeviceID returns the device identifier reported to the portal.
func NewDeviceID() uuid.UUID {
	return uuid.New()
}

// NewCodeVerifier returns a PKCE verifier made of three random UUIDs in hex (96 chars).
func NewCodeVerifier() string {
	var b strings.Builder
	b.Grow(96)
	for i := 0; i < 3; i++ {
		id := uuid.New()
		b.WriteString(strings.ReplaceAll(id.String(), "-", ""))
	}
	return b.String()
}

// CodeChallenge derives the S256 challenge for verifier.
func CodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
