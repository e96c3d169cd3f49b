package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateState(t *testing.T) {
	state, err := GenerateState()
	assert.NoError(t, err)
	assert.Len(t, state, 32) // 16 bytes hex-encoded

	decoded, err := hex.DecodeString(state)
	assert.NoError(t, err)
	assert.Len(t, decoded, 16)
}

func TestGenerateStateUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		state, err := GenerateState()
		require.NoError(t, err)
		require.False(t, seen[state], "state %q generated twice", state)
		seen[state] = true
	}
}

func TestGenerateSecureToken(t *testing.T) {
	token, err := GenerateSecureToken()
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	token2, err := GenerateSecureToken()
	assert.NoError(t, err)
	assert.NotEqual(t, token, token2)

	// base64 encoding of 32 bytes should be at least 40 chars
	assert.GreaterOrEqual(t, len(token), 40)
}
