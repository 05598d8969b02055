package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// UpdateProfileMessage patches an account's profile. Nil fields are left
// untouched; an explicit empty string clears the field.
type UpdateProfileMessage struct {
	AccountID  string  `json:"account_id"`
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	Avatar     *string `json:"avatar,omitempty"`
	Bio        *string `json:"bio,omitempty"`
	OnResponse func(resp *UpdateProfileResponse)
}

func (e UpdateProfileMessage) Type() string { return "profile.update" }

// Validate checks the patch payload.
func (e UpdateProfileMessage) Validate() error {
	err := validation.ValidateStruct(&e,
		validation.Field(&e.AccountID, validation.Required, is.UUID),
	)
	if err != nil {
		return err
	}

	if e.Avatar != nil && *e.Avatar != "" {
		// is.RequestURL rather than is.URL: the avatar must carry a scheme,
		// a bare host/path is not a usable image reference.
		if err := validation.Validate(*e.Avatar, is.RequestURL); err != nil {
			return validation.Errors{"avatar": err}
		}
	}

	return nil
}

// UpdateProfileResponse carries the updated pair back to the caller.
type UpdateProfileResponse struct {
	Account *Account
	Profile *Profile
}

// UpdateProfileHandler applies a partial update to an account's profile and,
// for the name fields, to the owning account in the same transaction.
type UpdateProfileHandler struct {
	repo   RepositoryManager
	logger Logger
}

// NewUpdateProfileHandler creates a handler with sane defaults.
func NewUpdateProfileHandler(repo RepositoryManager) *UpdateProfileHandler {
	return &UpdateProfileHandler{
		repo:   repo,
		logger: defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *UpdateProfileHandler) WithLogger(logger Logger) *UpdateProfileHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid profile update").
			WithMetadata(map[string]any{
				"fields": FormatValidationErrorToMap(err),
			})
	}

	var account *Account
	var profile *Profile

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.repo.Accounts().GetByIDTx(ctx, tx, event.AccountID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrIdentityNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for profile update")
		}

		profile, err = h.repo.Profiles().GetByAccountIDTx(ctx, tx, account.ID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "account has no companion profile")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve profile for update")
		}

		accountTouched := false
		if event.FirstName != nil && *event.FirstName != account.FirstName {
			account.FirstName = *event.FirstName
			accountTouched = true
		}
		if event.LastName != nil && *event.LastName != account.LastName {
			account.LastName = *event.LastName
			accountTouched = true
		}

		profileTouched := false
		if event.Avatar != nil && *event.Avatar != profile.Avatar {
			profile.Avatar = *event.Avatar
			profileTouched = true
		}
		if event.Bio != nil && *event.Bio != profile.Bio {
			profile.Bio = *event.Bio
			profileTouched = true
		}

		if accountTouched {
			if account, err = h.repo.Accounts().UpdateTx(ctx, tx, account, repository.UpdateByID(account.ID.String())); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account names")
			}
		}

		if profileTouched {
			if profile, err = h.repo.Profiles().UpdateTx(ctx, tx, profile, repository.UpdateByID(profile.ID.String())); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update profile")
			}
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "profile update transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(&UpdateProfileResponse{
			Account: account,
			Profile: profile,
		})
	}

	return nil
}
