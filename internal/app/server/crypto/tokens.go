package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var ErrNoHashes = errors.New("no token hashes configured")

// HashToken returns the bcrypt hash to put in API_TOKEN_HASHES.
func HashToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("token is empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(h), nil
}

// BcryptVerifier checks bearer tokens against a fixed list of bcrypt hashes.
// Tokens that matched once are remembered by digest so the bcrypt cost is paid once per token.
type BcryptVerifier struct {
	hashes [][]byte
	known  sync.Map // sha256 digest -> caller name
}

// NewBcryptVerifier parses hashes, skipping blank entries. The caller name of a token is
// "token-<n>" where n counts the non-blank hashes from 1.
func NewBcryptVerifier(hashes []string) (*BcryptVerifier, error) {
	v := &BcryptVerifier{}
	for i, h := range hashes {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			return nil, fmt.Errorf("token hash %d: %w", i+1, err)
		}
		v.hashes = append(v.hashes, []byte(h))
	}
	if len(v.hashes) == 0 {
		return nil, ErrNoHashes
	}
	return v, nil
}

func (v *BcryptVerifier) Verify(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	digest := sha256.Sum256([]byte(token))
	if caller, ok := v.known.Load(digest); ok {
		return caller.(string), true
	}

	for i, h := range v.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(token)) == nil {
			caller := fmt.Sprintf("token-%d", i+1)
			v.known.Store(digest, caller)
			return caller, true
		}
	}
	return "", false
}
