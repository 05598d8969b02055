package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// RegisterAccountMessage describes a provisioning request. IsStaff and
// IsSuperuser are tri-state so the admin path can tell "not supplied" apart
// from an explicit false.
type RegisterAccountMessage struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Description string `json:"description"`
	IsStaff     *bool  `json:"is_staff,omitempty"`
	IsSuperuser *bool  `json:"is_superuser,omitempty"`
	Admin       bool   `json:"-"`
	UseHashid   bool   `json:"-"`
	OnResponse  func(resp *RegisterAccountResponse)
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

// NewAdminAccountMessage builds a provisioning request for a staff+superuser
// account. Flags left unset default to true; the handler rejects explicit
// false values.
func NewAdminAccountMessage(email, password, firstName, lastName string) RegisterAccountMessage {
	return RegisterAccountMessage{
		Email:     email,
		Password:  password,
		FirstName: firstName,
		LastName:  lastName,
		Admin:     true,
	}
}

// RegisterAccountResponse carries the provisioned pair back to the caller.
type RegisterAccountResponse struct {
	Account *Account
	Profile *Profile
	Success bool
}

// RegisterAccountHandler provisions an account together with its profile.
// The pair is written in one transaction: once Execute returns, an account
// without a profile cannot be observed.
type RegisterAccountHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

// NewRegisterAccountHandler creates a handler with sane defaults.
func NewRegisterAccountHandler(repo RepositoryManager) *RegisterAccountHandler {
	return &RegisterAccountHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit registration events.
func (h *RegisterAccountHandler) WithActivitySink(sink ActivitySink) *RegisterAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterAccountHandler) WithLogger(logger Logger) *RegisterAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	if err := validateRegistration(event); err != nil {
		return err
	}

	account := &Account{}
	profile := &Profile{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		email := NormalizeEmail(event.Email)

		if _, err := h.repo.Accounts().GetByEmailTx(ctx, tx, email); err == nil {
			return goerrors.New("email is already registered", goerrors.CategoryValidation).
				WithTextCode(TextCodeEmailTaken).
				WithMetadata(map[string]any{"field": "email"})
		} else if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email uniqueness")
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		account.PasswordHash = hash
		account.Email = email
		account.FirstName = event.FirstName
		account.LastName = event.LastName
		account.Description = event.Description
		account.IsActive = true
		account.PreferredGenres = []string{}
		applyAccountFlags(account, event)

		if event.UseHashid {
			if id, err := hashid.NewUUID(email); err == nil {
				account.ID = id
			}
		}

		// One-time description migration: the incoming description seeds the
		// profile bio and the account field is cleared, in the same
		// transaction. Later saves of an existing account never re-trigger
		// this, the copy is keyed off "brand-new account" only.
		if event.Description != "" {
			profile.Bio = event.Description
			account.Description = ""
		}

		if account, err = h.repo.Accounts().CreateTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
		}

		profile.AccountID = account.ID
		if profile, err = h.repo.Profiles().CreateTx(ctx, tx, profile); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create companion profile")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	h.recordActivity(ctx, account)

	if event.OnResponse != nil {
		event.OnResponse(&RegisterAccountResponse{
			Account: account,
			Profile: profile,
			Success: true,
		})
	}

	return nil
}

func (h *RegisterAccountHandler) recordActivity(ctx context.Context, account *Account) {
	if account == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventAccountRegistered,
		Actor: ActorRef{
			ID:   account.ID.String(),
			Type: "account",
		},
		AccountID:  account.ID.String(),
		Metadata:   map[string]any{"email": account.Email},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during registration: %v", err)
	}
}

func validateRegistration(event RegisterAccountMessage) error {
	if NormalizeEmail(event.Email) == "" {
		return goerrors.New("email is required", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"field": "email"})
	}

	if event.FirstName == "" {
		return goerrors.New("first name is required", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"field": "first_name"})
	}

	if event.LastName == "" {
		return goerrors.New("last name is required", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"field": "last_name"})
	}

	if event.Admin {
		// The admin constructor always forces both flags true. An explicit
		// false is rejected rather than silently overridden.
		if event.IsStaff != nil && !*event.IsStaff {
			return goerrors.New("admin account must have is_staff=true", goerrors.CategoryValidation).
				WithMetadata(map[string]any{"field": "is_staff"})
		}
		if event.IsSuperuser != nil && !*event.IsSuperuser {
			return goerrors.New("admin account must have is_superuser=true", goerrors.CategoryValidation).
				WithMetadata(map[string]any{"field": "is_superuser"})
		}
	}

	return nil
}

func applyAccountFlags(account *Account, event RegisterAccountMessage) {
	if event.Admin {
		account.IsStaff = true
		account.IsSuperuser = true
		return
	}

	if event.IsStaff != nil {
		account.IsStaff = *event.IsStaff
	}
	if event.IsSuperuser != nil {
		account.IsSuperuser = *event.IsSuperuser
	}
}
