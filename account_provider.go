package identity

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// AccountTracker is a store we can use to retrieve accounts and track
// login attempts against them.
type AccountTracker interface {
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Account, error)
	TrackAttemptedLogin(ctx context.Context, account *Account) error
	TrackSuccessfulLogin(ctx context.Context, account *Account) error
}

// AccountProvider verifies credentials against stored accounts
type AccountProvider struct {
	store  AccountTracker
	logger Logger
}

// MaxLoginAttempts is the maximum number of attempts an account gets
// in a period
var MaxLoginAttempts = 5

// CoolDownPeriod is the period in which we enforce a cool down
var CoolDownPeriod = "24h"

// NewAccountProvider will create a new AccountProvider
func NewAccountProvider(store AccountTracker) *AccountProvider {
	return &AccountProvider{
		store:  store,
		logger: defLogger{},
	}
}

func (u *AccountProvider) WithLogger(l Logger) *AccountProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

// VerifyIdentity will find the account, compare the password, and return
// the identity. Bad identifier and bad password produce the same error.
func (u AccountProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	account, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.IsNotFound(err) || repository.IsRecordNotFound(err) {
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account during verification")
	}

	if err := ensureAuthenticatableAccount(account); err != nil {
		return nil, err
	}

	if account.LoginAttemptAt != nil {
		expired, err := IsOutsideThresholdPeriod(*account.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to calculate login attempt cooldown")
		}

		if expired {
			account.LoginAttempts = 0
		}
	}

	// if we have too many attempts in the given window, cool off!
	if account.LoginAttempts > MaxLoginAttempts {
		return nil, ErrTooManyLoginAttempts
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		// We have to increment the login_attempts counter and login_attempt_at
		if err2 := u.store.TrackAttemptedLogin(ctx, account); err2 != nil {
			return nil, errors.Wrap(err2, errors.CategoryInternal, "failed to track login attempt")
		}

		return nil, ErrMismatchedHashAndPassword
	}

	// reset the login_attempts counter and login_attempt_at
	if err := u.store.TrackSuccessfulLogin(ctx, account); err != nil {
		u.logger.Error("failed to track successful login", "error", err)
	}

	return NewIdentityFromAccount(account), nil
}

// FindIdentityByIdentifier resolves an identity by id or email without
// checking credentials.
func (u AccountProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	account, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.IsNotFound(err) || repository.IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	if err := ensureAuthenticatableAccount(account); err != nil {
		return nil, err
	}

	return NewIdentityFromAccount(account), nil
}

var _ IdentityProvider = AccountProvider{}

func ensureAuthenticatableAccount(account *Account) error {
	if account == nil {
		return ErrIdentityNotFound
	}

	if !account.IsActive {
		return ErrAccountInactive
	}

	return nil
}
