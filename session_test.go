package identity_test

import (
	"testing"
	"time"

	identity "github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionObject(t *testing.T) {
	id := uuid.New()
	issuedAt := time.Now()

	session := &identity.SessionObject{
		UserID:   id.String(),
		Audience: []string{"test:audience"},
		Issuer:   "test-issuer",
		IssuedAt: &issuedAt,
		Data: map[string]any{
			"admin":      true,
			"first_name": "Ada",
		},
	}

	assert.Equal(t, id.String(), session.GetUserID())
	assert.Equal(t, []string{"test:audience"}, session.GetAudience())
	assert.Equal(t, "test-issuer", session.GetIssuer())
	assert.Equal(t, &issuedAt, session.GetIssuedAt())
	assert.True(t, session.IsAdmin())
	assert.Equal(t, "Ada", session.FirstName())

	parsed, err := session.GetUserUUID()
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestSessionObjectDefaults(t *testing.T) {
	session := &identity.SessionObject{UserID: "not-a-uuid"}

	assert.False(t, session.IsAdmin())
	assert.Empty(t, session.FirstName())

	_, err := session.GetUserUUID()
	assert.Error(t, err)
}

func TestSessionObjectString(t *testing.T) {
	session := identity.SessionObject{
		UserID: "user-123",
		Issuer: "test-issuer",
	}

	out := session.String()
	assert.Contains(t, out, "user=user-123")
	assert.Contains(t, out, "iss=test-issuer")
	assert.Contains(t, out, "iat=<nil>")
}
