package identity_test

import (
	"context"
	"database/sql"

	identity "github.com/goliatone/go-identity"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// TestIdentity is a simple implementation of Identity interface for testing
type TestIdentity struct {
	id        string
	email     string
	firstName string
	admin     bool
}

func (t TestIdentity) ID() string        { return t.id }
func (t TestIdentity) Email() string     { return t.email }
func (t TestIdentity) FirstName() string { return t.firstName }
func (t TestIdentity) IsAdmin() bool     { return t.admin }

// MockConfig implements identity.Config
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) GetSigningKey() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetSigningMethod() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetContextKey() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetTokenExpiration() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockConfig) GetRefreshExpiration() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockConfig) GetTokenLookup() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetAuthScheme() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetIssuer() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetAudience() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

func (m *MockConfig) GetResetSecret() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetResetTokenTTL() string {
	args := m.Called()
	return args.String(0)
}

func newMockConfig() *MockConfig {
	mockConfig := new(MockConfig)
	mockConfig.On("GetSigningKey").Return("test-signing-key")
	mockConfig.On("GetTokenExpiration").Return(24)
	mockConfig.On("GetRefreshExpiration").Return(7)
	mockConfig.On("GetIssuer").Return("test-issuer")
	mockConfig.On("GetAudience").Return([]string{"test:audience"})
	return mockConfig
}

// MockIdentityProvider implements identity.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, identifier, password string) (identity.Identity, error) {
	args := m.Called(ctx, identifier, password)
	if v := args.Get(0); v != nil {
		return v.(identity.Identity), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (identity.Identity, error) {
	args := m.Called(ctx, identifier)
	if v := args.Get(0); v != nil {
		return v.(identity.Identity), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockAccountTracker implements identity.AccountTracker
type MockAccountTracker struct {
	mock.Mock
}

func (m *MockAccountTracker) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*identity.Account, error) {
	args := m.Called(ctx, identifier)
	return accountResult(args)
}

func (m *MockAccountTracker) TrackAttemptedLogin(ctx context.Context, account *identity.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountTracker) TrackSuccessfulLogin(ctx context.Context, account *identity.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

// MockActivitySink implements identity.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event identity.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockMailer implements identity.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg identity.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockRepositoryManager implements identity.RepositoryManager. RunInTx runs
// the callback with a zero transaction and propagates its error, so the
// handler logic inside the closure is exercised.
type MockRepositoryManager struct {
	mock.Mock
}

func (m *MockRepositoryManager) Validate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepositoryManager) MustValidate() {
	m.Called()
}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(context.Context, bun.Tx) error) error {
	args := m.Called(ctx, opts, f)
	if err := args.Error(0); err != nil {
		return err
	}
	return f(ctx, bun.Tx{})
}

func (m *MockRepositoryManager) Accounts() identity.Accounts {
	args := m.Called()
	return args.Get(0).(identity.Accounts)
}

func (m *MockRepositoryManager) Profiles() identity.Profiles {
	args := m.Called()
	return args.Get(0).(identity.Profiles)
}

// MockAccounts implements identity.Accounts. The embedded Repository covers
// the generic CRUD surface; only the methods exercised by tests are wired to
// expectations.
type MockAccounts struct {
	mock.Mock
	repository.Repository[*identity.Account]
}

func (m *MockAccounts) RawTx(ctx context.Context, tx bun.IDB, sql string, args ...any) ([]*identity.Account, error) {
	a := m.Called(ctx, tx, sql, args)
	return accountsResult(a)
}

func (m *MockAccounts) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*identity.Account, error) {
	args := m.Called(ctx, id)
	return accountResult(args)
}

func (m *MockAccounts) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (*identity.Account, error) {
	args := m.Called(ctx, tx, id)
	return accountResult(args)
}

func (m *MockAccounts) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*identity.Account, error) {
	args := m.Called(ctx, identifier)
	return accountResult(args)
}

func (m *MockAccounts) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*identity.Account, error) {
	args := m.Called(ctx, tx, identifier)
	return accountResult(args)
}

func (m *MockAccounts) GetByEmail(ctx context.Context, email string, criteria ...repository.SelectCriteria) (*identity.Account, error) {
	args := m.Called(ctx, email)
	return accountResult(args)
}

func (m *MockAccounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string, criteria ...repository.SelectCriteria) (*identity.Account, error) {
	args := m.Called(ctx, tx, email)
	return accountResult(args)
}

func (m *MockAccounts) Create(ctx context.Context, record *identity.Account, criteria ...repository.InsertCriteria) (*identity.Account, error) {
	args := m.Called(ctx, record)
	return accountResult(args)
}

func (m *MockAccounts) CreateTx(ctx context.Context, tx bun.IDB, record *identity.Account, criteria ...repository.InsertCriteria) (*identity.Account, error) {
	args := m.Called(ctx, tx, record)
	return accountResult(args)
}

func (m *MockAccounts) Update(ctx context.Context, record *identity.Account, criteria ...repository.UpdateCriteria) (*identity.Account, error) {
	args := m.Called(ctx, record)
	return accountResult(args)
}

func (m *MockAccounts) UpdateTx(ctx context.Context, tx bun.IDB, record *identity.Account, criteria ...repository.UpdateCriteria) (*identity.Account, error) {
	args := m.Called(ctx, tx, record)
	return accountResult(args)
}

func (m *MockAccounts) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]*identity.Account, int, error) {
	args := m.Called(ctx)
	records, err := accountsResult(args)
	return records, len(records), err
}

func (m *MockAccounts) TrackAttemptedLogin(ctx context.Context, account *identity.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccounts) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, account *identity.Account) error {
	args := m.Called(ctx, tx, account)
	return args.Error(0)
}

func (m *MockAccounts) TrackSuccessfulLogin(ctx context.Context, account *identity.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccounts) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, account *identity.Account) error {
	args := m.Called(ctx, tx, account)
	return args.Error(0)
}

func (m *MockAccounts) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockAccounts) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

func accountResult(args mock.Arguments) (*identity.Account, error) {
	if v := args.Get(0); v != nil {
		return v.(*identity.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func accountsResult(args mock.Arguments) ([]*identity.Account, error) {
	if v := args.Get(0); v != nil {
		return v.([]*identity.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockProfiles implements identity.Profiles
type MockProfiles struct {
	mock.Mock
	repository.Repository[*identity.Profile]
}

func (m *MockProfiles) GetByAccountID(ctx context.Context, accountID uuid.UUID, criteria ...repository.SelectCriteria) (*identity.Profile, error) {
	args := m.Called(ctx, accountID)
	return profileResult(args)
}

func (m *MockProfiles) GetByAccountIDTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, criteria ...repository.SelectCriteria) (*identity.Profile, error) {
	args := m.Called(ctx, tx, accountID)
	return profileResult(args)
}

func (m *MockProfiles) CreateTx(ctx context.Context, tx bun.IDB, record *identity.Profile, criteria ...repository.InsertCriteria) (*identity.Profile, error) {
	args := m.Called(ctx, tx, record)
	return profileResult(args)
}

func (m *MockProfiles) UpdateTx(ctx context.Context, tx bun.IDB, record *identity.Profile, criteria ...repository.UpdateCriteria) (*identity.Profile, error) {
	args := m.Called(ctx, tx, record)
	return profileResult(args)
}

func profileResult(args mock.Arguments) (*identity.Profile, error) {
	if v := args.Get(0); v != nil {
		return v.(*identity.Profile), args.Error(1)
	}
	return nil, args.Error(1)
}
