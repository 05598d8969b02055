package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// VerifyResetTokenMessage probes a reset token without consuming it, so a
// form can be shown (or an error page rendered) before the user types a new
// password.
type VerifyResetTokenMessage struct {
	Token      string `json:"token"`
	OnResponse func(resp *VerifyResetTokenResponse)
}

func (e VerifyResetTokenMessage) Type() string { return "password.reset.verify" }

// VerifyResetTokenResponse reports the token state. Email is masked so the
// page can hint at the destination without disclosing the address.
type VerifyResetTokenResponse struct {
	Valid bool
	Email string
}

// VerifyResetTokenHandler validates a token against current account state.
type VerifyResetTokenHandler struct {
	tokens *ResetTokenService
}

// NewVerifyResetTokenHandler creates the probe handler.
func NewVerifyResetTokenHandler(tokens *ResetTokenService) *VerifyResetTokenHandler {
	return &VerifyResetTokenHandler{tokens: tokens}
}

func (h *VerifyResetTokenHandler) Execute(ctx context.Context, event VerifyResetTokenMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during reset token verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyResetTokenHandler) execute(ctx context.Context, event VerifyResetTokenMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := h.tokens.Verify(ctx, event.Token)
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(&VerifyResetTokenResponse{
			Valid: true,
			Email: maskEmail(account.Email),
		})
	}

	return nil
}

func maskEmail(email string) string {
	at := -1
	for i, r := range email {
		if r == '@' {
			at = i
			break
		}
	}
	if at <= 1 {
		return email
	}
	return email[:1] + "***" + email[at:]
}
