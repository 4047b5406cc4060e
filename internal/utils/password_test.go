package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("Vtria@2025")
	require.NoError(t, err)
	assert.NotEqual(t, "Vtria@2025", hash)
	assert.True(t, CheckPassword("Vtria@2025", hash))

	again, err := HashPassword("Vtria@2025")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salted hashes differ")
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("store-keeper")
	require.NoError(t, err)

	for _, wrong := range []string{"", "Store-keeper", "store-keeper ", "store"} {
		assert.False(t, CheckPassword(wrong, hash), "password %q", wrong)
	}
	assert.False(t, CheckPassword("store-keeper", ""), "empty hash")
	assert.False(t, CheckPassword("store-keeper", "not-a-bcrypt-hash"))
}
