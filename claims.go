package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token use markers stored in the token_use claim.
const (
	TokenUseAccess  = "access"
	TokenUseRefresh = "refresh"
)

// AuthClaims represents structured JWT claims
type AuthClaims interface {
	Subject() string
	AccountID() string
	GivenName() string
	IsAdmin() bool
	Use() string
	Expires() time.Time
	IssuedAt() time.Time
}

// IdentityClaims is the concrete implementation of AuthClaims
type IdentityClaims struct {
	jwt.RegisteredClaims
	UID       string         `json:"uid,omitempty"`
	FirstName string         `json:"first_name,omitempty"`
	Admin     bool           `json:"adm,omitempty"`
	TokenUse  string         `json:"token_use,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"` // extension payload
}

// Verify interface compliance
var _ AuthClaims = (*IdentityClaims)(nil)

// Subject returns the subject claim
func (c *IdentityClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// AccountID returns the account ID
func (c *IdentityClaims) AccountID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// GivenName returns the first_name claim
func (c *IdentityClaims) GivenName() string {
	return c.FirstName
}

// IsAdmin reports whether the adm claim is set
func (c *IdentityClaims) IsAdmin() bool {
	return c.Admin
}

// Use returns the token_use claim, defaulting to access
func (c *IdentityClaims) Use() string {
	if c.TokenUse == "" {
		return TokenUseAccess
	}
	return c.TokenUse
}

// ClaimsMetadata exposes metadata extensions for optional context enrichment.
func (c *IdentityClaims) ClaimsMetadata() map[string]any {
	return c.Metadata
}

// Expires returns the expiration time
func (c *IdentityClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *IdentityClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// MintClaims derives the identity claim set for an account. Pure: no clock,
// no issuance fields, callers stamp those before signing. TokenService
// issuance goes through the same derivation, so minted claims and signed
// claims can never drift apart.
func MintClaims(account *Account) *IdentityClaims {
	if account == nil {
		return &IdentityClaims{}
	}
	return mintIdentityClaims(NewIdentityFromAccount(account))
}

// mintIdentityClaims is the canonical identity-to-claims mapping shared by
// MintClaims and the token service.
func mintIdentityClaims(identity Identity) *IdentityClaims {
	if identity == nil {
		return &IdentityClaims{}
	}

	return &IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: identity.ID(),
		},
		UID:       identity.ID(),
		FirstName: identity.FirstName(),
		Admin:     identity.IsAdmin(),
	}
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims == nil {
		return
	}
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
