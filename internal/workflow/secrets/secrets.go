// Package secrets issues and checks the API keys webhook providers present.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	dErrors "giftlist/pkg/domain-errors"
)

// KeyPrefix marks generated keys so they are recognisable in provider consoles.
const KeyPrefix = "whk_"

// Generate returns a fresh provider key. Only its Hash is stored.
func Generate() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate api key: %w", err)
	}
	return KeyPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash is what goes into WEBHOOK_API_KEY_HASHES.
func Hash(key string) (string, error) {
	if key == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "api key cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "api key is too long")
	}
	if err != nil {
		return "", fmt.Errorf("could not hash api key: %w", err)
	}
	return string(hashed), nil
}

// KeyVerifier accepts a key matching any of its hashes, so an old and a new
// key both work while providers are rotated. With no hashes every key is
// refused.
type KeyVerifier struct {
	hashes [][]byte
}

func NewKeyVerifier(hashes ...string) *KeyVerifier {
	v := &KeyVerifier{}
	for _, h := range hashes {
		if h != "" {
			v.hashes = append(v.hashes, []byte(h))
		}
	}
	return v
}

func (v *KeyVerifier) Verify(key string) error {
	if len(v.hashes) == 0 {
		return dErrors.New(dErrors.CodeUnauthorized, "webhook api key not configured")
	}
	for _, h := range v.hashes {
		err := bcrypt.CompareHashAndPassword(h, []byte(key))
		if err == nil {
			return nil
		}
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("could not verify api key: %w", err)
		}
	}
	return dErrors.New(dErrors.CodeUnauthorized, "invalid api key")
}
