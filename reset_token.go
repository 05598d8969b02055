package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// DefaultResetTokenTTL keeps reset links short lived: hours, not days.
const DefaultResetTokenTTL = "2h"

// AccountSource is the single lookup the reset token verifier needs.
type AccountSource interface {
	GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*Account, error)
}

// ResetTokenService issues and verifies stateless password reset tokens.
//
// A token is a MAC over {account id, issuance time, fingerprint of the
// account's current password hash} under a process-wide secret. Nothing is
// persisted: verification recomputes the MAC from current account state, so
// any password change invalidates every outstanding token for that account.
// That is the single-use mechanism, there is no consumption flag.
type ResetTokenService struct {
	secret   []byte
	accounts AccountSource
	ttl      string
	now      func() time.Time
	logger   Logger
}

// NewResetTokenService creates a token service with sane defaults.
func NewResetTokenService(secret []byte, accounts AccountSource) *ResetTokenService {
	return &ResetTokenService{
		secret:   secret,
		accounts: accounts,
		ttl:      DefaultResetTokenTTL,
		now:      time.Now,
		logger:   defLogger{},
	}
}

// WithTTL overrides the validity window, e.g. "30m" or "4h".
func (s *ResetTokenService) WithTTL(pattern string) *ResetTokenService {
	if pattern != "" {
		s.ttl = pattern
	}
	return s
}

// WithNow overrides the clock, used by tests to age tokens.
func (s *ResetTokenService) WithNow(now func() time.Time) *ResetTokenService {
	if now != nil {
		s.now = now
	}
	return s
}

// WithLogger overrides the logger used by the service.
func (s *ResetTokenService) WithLogger(logger Logger) *ResetTokenService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// TTL exposes the configured validity window pattern.
func (s *ResetTokenService) TTL() string {
	return s.ttl
}

// Issue derives a reset token for the account's current credential state.
func (s *ResetTokenService) Issue(account *Account) (string, error) {
	if account == nil || account.ID == uuid.Nil {
		return "", goerrors.New("cannot issue reset token without an account", goerrors.CategoryBadInput)
	}

	if len(s.secret) == 0 {
		return "", goerrors.New("reset token secret is not configured", goerrors.CategoryInternal)
	}

	payload := resetTokenPayload(account.ID, s.now().Unix())
	mac := s.sign(payload, passwordFingerprint(account.PasswordHash))

	token := base64.RawURLEncoding.EncodeToString([]byte(payload)) +
		"." +
		base64.RawURLEncoding.EncodeToString(mac)

	return token, nil
}

// Verify decodes a token and checks it against current account state.
// Returns the account on success. Failure modes after decoding are
// deliberately indistinguishable: see ErrResetTokenInvalid.
func (s *ResetTokenService) Verify(ctx context.Context, token string) (*Account, error) {
	accountID, issuedAt, mac, err := decodeResetToken(token)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, accountID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrResetTokenInvalid
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account during token verification")
	}

	payload := resetTokenPayload(accountID, issuedAt.Unix())
	expected := s.sign(payload, passwordFingerprint(account.PasswordHash))

	if !hmac.Equal(mac, expected) {
		// tampered token and stale-password token look identical on purpose
		return nil, ErrResetTokenInvalid
	}

	expired, err := IsOutsideThresholdPeriod(issuedAt, s.ttl)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check reset token expiration period")
	}

	if expired {
		return nil, ErrResetTokenInvalid
	}

	return account, nil
}

func (s *ResetTokenService) sign(payload, fingerprint string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	mac.Write([]byte(":"))
	mac.Write([]byte(fingerprint))
	return mac.Sum(nil)
}

func resetTokenPayload(id uuid.UUID, issuedAt int64) string {
	return fmt.Sprintf("%s:%d", id.String(), issuedAt)
}

// passwordFingerprint binds a token to the credential state it was issued
// for without ever embedding the hash itself.
func passwordFingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func decodeResetToken(token string) (uuid.UUID, time.Time, []byte, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return uuid.Nil, time.Time{}, nil, ErrResetTokenMalformed
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return uuid.Nil, time.Time{}, nil, ErrResetTokenMalformed
	}

	mac, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return uuid.Nil, time.Time{}, nil, ErrResetTokenMalformed
	}

	fields := strings.Split(string(payload), ":")
	if len(fields) != 2 {
		return uuid.Nil, time.Time{}, nil, ErrResetTokenMalformed
	}

	accountID, err := uuid.Parse(fields[0])
	if err != nil {
		return uuid.Nil, time.Time{}, nil, ErrResetTokenMalformed
	}

	unix, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return uuid.Nil, time.Time{}, nil, ErrResetTokenMalformed
	}

	return accountID, time.Unix(unix, 0), mac, nil
}
