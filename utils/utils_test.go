package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordRoundTrip(t *testing.T) {
	SetPasswordCost(bcrypt.MinCost)
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "wrong"))
	assert.False(t, CheckPassword("", ""))
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Unique([]string{"a", "b", "a", "c", "b"}))
	assert.Equal(t, []string{}, Unique[string](nil))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "hi ", Sanitize(`hi <script>alert(1)</script>`))
	assert.Equal(t, "<b>bold</b>", Sanitize("<b>bold</b>"))
	assert.Equal(t, "Bob", SanitizeText("  <i>Bob</i> "))
}
