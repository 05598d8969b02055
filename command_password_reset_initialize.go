package identity

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// InitializePasswordResetMessage starts a password reset for the given email.
type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (e InitializePasswordResetMessage) Type() string { return "password.reset.initialize" }

// InitializePasswordResetResponse reports the outcome of a reset request.
// Delivered is false when the email did not match an account; the HTTP layer
// returns the same body either way.
type InitializePasswordResetResponse struct {
	Email     string
	Delivered bool
}

// InitializePasswordResetHandler looks up the account, issues a stateless
// reset token and delivers the notification synchronously.
type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	tokens   *ResetTokenService
	mailer   Mailer
	activity ActivitySink
	logger   Logger
	// BaseURL prefixes the reset link embedded in the email body.
	BaseURL string
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(repo RepositoryManager, tokens *ResetTokenService, mailer Mailer) *InitializePasswordResetHandler {
	if mailer == nil {
		mailer = NewLogMailer(defLogger{})
	}
	return &InitializePasswordResetHandler{
		repo:     repo,
		tokens:   tokens,
		mailer:   mailer,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit reset events.
func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithBaseURL sets the public URL prefix for reset links.
func (h *InitializePasswordResetHandler) WithBaseURL(base string) *InitializePasswordResetHandler {
	h.BaseURL = base
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	email := NormalizeEmail(event.Email)
	if email == "" {
		return goerrors.New("email is required", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"field": "email"})
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := h.repo.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			// Unknown addresses complete without sending anything, so the
			// endpoint cannot be used to enumerate registered emails.
			h.logger.Debug("password reset requested for unknown email %s", email)
			h.respond(event, email, false)
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
	}

	token, err := h.tokens.Issue(account)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue password reset token")
	}

	if err := h.mailer.Send(ctx, h.buildMessage(account, token)); err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryExternal, "failed to deliver password reset email").
			WithTextCode(TextCodeEmailDeliveryFailed)
	}

	h.recordActivity(ctx, account)
	h.respond(event, email, true)

	return nil
}

func (h *InitializePasswordResetHandler) buildMessage(account *Account, token string) Message {
	link := token
	if h.BaseURL != "" {
		link = fmt.Sprintf("%s/password-reset/%s", h.BaseURL, token)
	}

	body := fmt.Sprintf(
		"Hello %s,\r\n\r\nA password reset was requested for your account. Use the link below to choose a new password:\r\n\r\n%s\r\n\r\nThe link expires in %s. If you did not request this you can ignore this message.\r\n",
		account.FirstName,
		link,
		h.tokens.TTL(),
	)

	return Message{
		To:      account.Email,
		Subject: "Password reset request",
		Body:    body,
	}
}

func (h *InitializePasswordResetHandler) respond(event InitializePasswordResetMessage, email string, delivered bool) {
	if event.OnResponse != nil {
		event.OnResponse(&InitializePasswordResetResponse{
			Email:     email,
			Delivered: delivered,
		})
	}
}

func (h *InitializePasswordResetHandler) recordActivity(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType: ActivityEventPasswordResetRequested,
		Actor: ActorRef{
			ID:   account.ID.String(),
			Type: "account",
		},
		AccountID:  account.ID.String(),
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password reset request: %v", err)
	}
}
