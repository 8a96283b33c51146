// Package pkce generates Proof Key for Code Exchange verifiers and their S256 challenges (RFC 7636).
package pkce

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
	"golang.org/x/oauth2"
)

// Unreserved is the RFC 3986 unreserved alphabet verifiers are drawn from.
const Unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

const (
	MinLength     = 43
	MaxLength     = 128
	DefaultLength = 128
)

// largest multiple of len(Unreserved) that fits in a byte; bytes at or above it are rejected so every symbol is equally likely
const rejectAbove = 256 - 256%len(Unreserved)

var randReader io.Reader = rand.Reader

// GenerateVerifier returns length characters drawn uniformly from [Unreserved] using crypto/rand.
func GenerateVerifier(length int) (string, error) {
	if length < MinLength || length > MaxLength {
		return "", fmt.Errorf("%w: verifier length %d outside [%d,%d]", shared.ErrInvalidArgument, length, MinLength, MaxLength)
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := io.ReadFull(randReader, buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= rejectAbove {
				continue
			}
			out = append(out, Unreserved[int(b)%len(Unreserved)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}

// DeriveChallenge returns BASE64URL(SHA256(verifier)) without padding.
func DeriveChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// New generates a verifier of the given length and its challenge.
func New(length int) (models.PKCEChallenge, error) {
	verifier, err := GenerateVerifier(length)
	if err != nil {
		return models.PKCEChallenge{}, err
	}
	return models.PKCEChallenge{Verifier: verifier, Challenge: DeriveChallenge(verifier)}, nil
}

// ValidVerifier reports whether v has a legal length and only unreserved characters.
func ValidVerifier(v string) bool {
	if len(v) < MinLength || len(v) > MaxLength {
		return false
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-' || c == '.' || c == '_' || c == '~':
		default:
			return false
		}
	}
	return true
}
