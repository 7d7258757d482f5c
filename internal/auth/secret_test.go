package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretHashRoundTrip(t *testing.T) {
	hashed, err := HashSecret("s3cret")
	require.NoError(t, err)
	require.NotEqual(t, "s3cret", hashed)

	assert.True(t, CheckSecret(hashed, "s3cret"))
	assert.False(t, CheckSecret(hashed, "wrong"))
	assert.False(t, CheckSecret("not a hash", "s3cret"))
}
