package identity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ Session = &SessionObject{}

type SessionObject struct {
	UserID         string         `json:"user_id,omitempty"`
	Audience       []string       `json:"audience,omitempty"`
	Issuer         string         `json:"issuer,omitempty"`
	IssuedAt       *time.Time     `json:"issued_at,omitempty"`
	ExpirationDate *time.Time     `json:"expiration_date,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

func (s *SessionObject) GetUserID() string {
	return s.UserID
}

func (s *SessionObject) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

func (s *SessionObject) GetAudience() []string {
	return s.Audience
}

func (s *SessionObject) GetIssuer() string {
	return s.Issuer
}

func (s *SessionObject) GetIssuedAt() *time.Time {
	return s.IssuedAt
}

func (s *SessionObject) GetData() map[string]any {
	return s.Data
}

// IsAdmin reports the admin flag recorded in session data.
func (s *SessionObject) IsAdmin() bool {
	if s.Data == nil {
		return false
	}
	admin, _ := s.Data["admin"].(bool)
	return admin
}

// FirstName returns the given name recorded in session data.
func (s *SessionObject) FirstName() string {
	if s.Data == nil {
		return ""
	}
	name, _ := s.Data["first_name"].(string)
	return name
}

func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"user=%s aud=%v iss=%s iat=%s data=%v",
		s.UserID,
		s.Audience,
		s.Issuer,
		issuedAt,
		s.Data,
	)
}

// sessionFromAuthClaims creates a SessionObject from the AuthClaims interface
func sessionFromAuthClaims(claims AuthClaims) (*SessionObject, error) {
	if claims == nil {
		return nil, ErrUnableToDecodeSession
	}

	data := make(map[string]any)
	data["admin"] = claims.IsAdmin()
	data["first_name"] = claims.GivenName()

	if identityClaims, ok := claims.(*IdentityClaims); ok {
		if len(identityClaims.Metadata) > 0 {
			data["metadata"] = identityClaims.Metadata
		}
	}

	var audience []string
	if identityClaims, ok := claims.(*IdentityClaims); ok {
		if identityClaims.RegisteredClaims.Audience != nil {
			for _, aud := range identityClaims.RegisteredClaims.Audience {
				audience = append(audience, aud)
			}
		}
	}

	issuedAt := claims.IssuedAt()
	expiresAt := claims.Expires()

	return &SessionObject{
		UserID:         claims.AccountID(),
		Audience:       audience,
		Issuer:         getIssuerFromClaims(claims),
		Data:           data,
		IssuedAt:       &issuedAt,
		ExpirationDate: &expiresAt,
	}, nil
}

// getIssuerFromClaims extracts the issuer from AuthClaims
func getIssuerFromClaims(claims AuthClaims) string {
	if identityClaims, ok := claims.(*IdentityClaims); ok {
		if identityClaims.RegisteredClaims.Issuer != "" {
			return identityClaims.RegisteredClaims.Issuer
		}
	}
	// Fallback to subject if no issuer is available
	return claims.Subject()
}
