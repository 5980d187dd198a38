package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "giftlist/pkg/domain-errors"
)

func TestKeyVerifier(t *testing.T) {
	current, err := Generate()
	require.NoError(t, err)
	previous, err := Generate()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(current, KeyPrefix))
	assert.NotEqual(t, current, previous)

	currentHash, err := Hash(current)
	require.NoError(t, err)
	previousHash, err := Hash(previous)
	require.NoError(t, err)

	t.Run("matching key verifies", func(t *testing.T) {
		assert.NoError(t, NewKeyVerifier(currentHash).Verify(current))
	})

	t.Run("both keys work during rotation", func(t *testing.T) {
		v := NewKeyVerifier(previousHash, currentHash)
		assert.NoError(t, v.Verify(previous))
		assert.NoError(t, v.Verify(current))
	})

	t.Run("wrong key is unauthorized", func(t *testing.T) {
		err := NewKeyVerifier(currentHash).Verify(previous)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("unconfigured verifier rejects everything", func(t *testing.T) {
		err := NewKeyVerifier("", "").Verify(current)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("empty key cannot be hashed", func(t *testing.T) {
		_, err := Hash("")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}
