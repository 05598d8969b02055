package identity

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// UpdatePreferencesMessage replaces an account's preferred genre list. The
// list is replaced wholesale: send the full desired list, not a delta.
type UpdatePreferencesMessage struct {
	AccountID       string   `json:"account_id"`
	PreferredGenres []string `json:"preferred_genres"`
	OnResponse      func(resp *UpdatePreferencesResponse)
}

func (e UpdatePreferencesMessage) Type() string { return "preferences.update" }

// UpdatePreferencesResponse carries the stored list back to the caller.
type UpdatePreferencesResponse struct {
	Account *Account
}

// UpdatePreferencesHandler validates and stores the preferred genre list.
// On validation failure the stored list is left unchanged.
type UpdatePreferencesHandler struct {
	repo   RepositoryManager
	logger Logger
}

// NewUpdatePreferencesHandler creates a handler with sane defaults.
func NewUpdatePreferencesHandler(repo RepositoryManager) *UpdatePreferencesHandler {
	return &UpdatePreferencesHandler{
		repo:   repo,
		logger: defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *UpdatePreferencesHandler) WithLogger(logger Logger) *UpdatePreferencesHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UpdatePreferencesHandler) Execute(ctx context.Context, event UpdatePreferencesMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during preferences update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdatePreferencesHandler) execute(ctx context.Context, event UpdatePreferencesMessage) error {
	if event.AccountID == "" {
		return goerrors.New("account id is required", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"field": "account_id"})
	}

	if len(event.PreferredGenres) > MaxPreferredGenres {
		return goerrors.New(
			fmt.Sprintf("preferred_genres accepts at most %d entries", MaxPreferredGenres),
			goerrors.CategoryValidation,
		).WithMetadata(map[string]any{
			"field": "preferred_genres",
			"limit": MaxPreferredGenres,
			"count": len(event.PreferredGenres),
		})
	}

	genres := event.PreferredGenres
	if genres == nil {
		genres = []string{}
	}

	var account *Account

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.repo.Accounts().GetByIDTx(ctx, tx, event.AccountID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrIdentityNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for preferences update")
		}

		account.PreferredGenres = genres
		if account, err = h.repo.Accounts().UpdateTx(ctx, tx, account, repository.UpdateByID(account.ID.String())); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store preferred genres")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "preferences update transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(&UpdatePreferencesResponse{Account: account})
	}

	return nil
}

// ConfirmPreferencesMessage marks an account's preferences as reviewed.
type ConfirmPreferencesMessage struct {
	AccountID  string `json:"account_id"`
	OnResponse func(resp *ConfirmPreferencesResponse)
}

func (e ConfirmPreferencesMessage) Type() string { return "preferences.confirm" }

// ConfirmPreferencesResponse reports whether the confirmation was recorded
// now or had already happened before.
type ConfirmPreferencesResponse struct {
	Account          *Account
	AlreadyConfirmed bool
}

// ConfirmPreferencesHandler flips the preferences confirmation flag.
// Confirming twice is a no-op reported via AlreadyConfirmed.
type ConfirmPreferencesHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

// NewConfirmPreferencesHandler creates a handler with sane defaults.
func NewConfirmPreferencesHandler(repo RepositoryManager) *ConfirmPreferencesHandler {
	return &ConfirmPreferencesHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit confirmation events.
func (h *ConfirmPreferencesHandler) WithActivitySink(sink ActivitySink) *ConfirmPreferencesHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ConfirmPreferencesHandler) WithLogger(logger Logger) *ConfirmPreferencesHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ConfirmPreferencesHandler) Execute(ctx context.Context, event ConfirmPreferencesMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during preferences confirmation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmPreferencesHandler) execute(ctx context.Context, event ConfirmPreferencesMessage) error {
	if event.AccountID == "" {
		return goerrors.New("account id is required", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"field": "account_id"})
	}

	var account *Account
	already := false

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.repo.Accounts().GetByIDTx(ctx, tx, event.AccountID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrIdentityNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for preferences confirmation")
		}

		if account.PreferencesConfirmed {
			already = true
			return nil
		}

		account.PreferencesConfirmed = true
		if account, err = h.repo.Accounts().UpdateTx(ctx, tx, account, repository.UpdateByID(account.ID.String())); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record preferences confirmation")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "preferences confirmation transaction failed")
	}

	if !already {
		h.recordActivity(ctx, account)
	}

	if event.OnResponse != nil {
		event.OnResponse(&ConfirmPreferencesResponse{
			Account:          account,
			AlreadyConfirmed: already,
		})
	}

	return nil
}

func (h *ConfirmPreferencesHandler) recordActivity(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType: ActivityEventPreferencesConfirmed,
		Actor: ActorRef{
			ID:   account.ID.String(),
			Type: "account",
		},
		AccountID:  account.ID.String(),
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during preferences confirmation: %v", err)
	}
}
