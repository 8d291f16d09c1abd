package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := HashWithCost("correct horse", bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, Verify("correct horse", hash))
	assert.False(t, Verify("wrong horse", hash))
}

func TestHashTokenIsStable(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}

func TestValidatePassword(t *testing.T) {
	assert.False(t, ValidatePassword("short"))
	assert.True(t, ValidatePassword("longenough"))
}
