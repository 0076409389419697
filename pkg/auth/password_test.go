package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("SecurePass1!")
	require.NoError(t, err)
	assert.NotEqual(t, "SecurePass1!", hash)

	assert.NoError(t, ComparePassword(hash, "SecurePass1!"))
	assert.Error(t, ComparePassword(hash, "WrongPass1!"))
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}

func TestComparePassword_EmptyHash(t *testing.T) {
	// Provider-linked accounts have no local hash; comparison must still fail
	// without being observably faster.
	assert.Error(t, ComparePassword("", "anything"))
}

func TestGenerateOpaqueToken(t *testing.T) {
	token1, err := GenerateOpaqueToken()
	require.NoError(t, err)
	token2, err := GenerateOpaqueToken()
	require.NoError(t, err)

	assert.NotEqual(t, token1, token2)
	// 32 bytes base64url without padding.
	assert.Len(t, token1, 43)
	assert.NotContains(t, token1, "=")
	assert.NotContains(t, token1, "+")
	assert.NotContains(t, token1, "/")
}

func TestHashToken_Deterministic(t *testing.T) {
	h1 := HashToken("some-token")
	h2 := HashToken("some-token")
	h3 := HashToken("other-token")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64) // hex-encoded SHA-256
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
	}{
		{"valid password", "SecurePass1!", true},
		{"too short", "Sp1!", false},
		{"too long", strings.Repeat("Aa1!", 40), false},
		{"no uppercase", "securepass1!", false},
		{"no lowercase", "SECUREPASS1!", false},
		{"no digit", "SecurePass!", false},
		{"no special", "SecurePass1", false},
		{"common password", "password", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				// Never leaks which requirement failed.
				assert.Equal(t, "invalid password", err.Error())
			}
		})
	}
}
