package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MaxPreferredGenres bounds the preference list stored on an account.
const MaxPreferredGenres = 3

// Account is the authoritative identity record
type Account struct {
	bun.BaseModel        `bun:"table:accounts,alias:acc"`
	ID                   uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email                string     `bun:"email,notnull,unique" json:"email,omitempty"`
	FirstName            string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName             string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	Description          string     `bun:"description" json:"description,omitempty"`
	PasswordHash         string     `bun:"password_hash" json:"-"`
	IsActive             bool       `bun:"is_active" json:"is_active"`
	IsStaff              bool       `bun:"is_staff" json:"is_staff"`
	IsSuperuser          bool       `bun:"is_superuser" json:"is_superuser"`
	PreferredGenres      []string   `bun:"preferred_genres,type:jsonb" json:"preferred_genres,omitempty"`
	PreferencesConfirmed bool       `bun:"preferences_confirmed" json:"preferences_confirmed"`
	LoginAttempts        int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt       *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt           *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	DateJoined           *time.Time `bun:"date_joined,nullzero,default:current_timestamp" json:"date_joined,omitempty"`
	UpdatedAt            *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt            *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`

	Profile *Profile `bun:"rel:has-one,join:id=account_id" json:"profile,omitempty"`
}

// FullName returns the display name for the account
func (a *Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// IsAdmin reports whether the account carries the admin flag.
func (a *Account) IsAdmin() bool {
	return a.IsSuperuser
}

// NormalizeEmail lower-cases and trims an email identifier. The same
// normalization runs before the uniqueness check and before every lookup so
// an address can never register twice under different casings.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Profile is the one-to-one public companion of an Account. It is created
// atomically with its account and addressed through it.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:prf"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,unique,type:uuid" json:"account_id,omitempty"`
	Account       *Account   `bun:"rel:belongs-to,join:account_id=id" json:"account,omitempty"`
	Avatar        string     `bun:"avatar" json:"avatar,omitempty"`
	Bio           string     `bun:"bio" json:"bio,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// PublicProfile is the read-only representation exposed to anonymous
// callers. Email and every credential-adjacent field are excluded.
type PublicProfile struct {
	AccountID string `json:"account_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Avatar    string `json:"avatar,omitempty"`
	Bio       string `json:"bio,omitempty"`
}

// NewPublicProfile builds the anonymous view of an account and its profile.
func NewPublicProfile(account *Account, profile *Profile) PublicProfile {
	p := PublicProfile{
		AccountID: account.ID.String(),
		FirstName: account.FirstName,
		LastName:  account.LastName,
	}
	if profile != nil {
		p.Avatar = profile.Avatar
		p.Bio = profile.Bio
	}
	return p
}
