package identity

import (
	"context"
	"reflect"
	"time"
)

// Auther implements the Authenticator interface on top of an
// IdentityProvider and a TokenService.
type Auther struct {
	provider        IdentityProvider
	signingKey      []byte
	tokenExpiration int
	refreshTTL      int
	issuer          string
	audience        []string
	logger          Logger
	tokenService    TokenService
	tokenValidator  TokenValidator
	activitySink    ActivitySink
	claimsDecorator ClaimsDecorator
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetRefreshExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		provider:        provider,
		signingKey:      []byte(opts.GetSigningKey()),
		tokenExpiration: opts.GetTokenExpiration(),
		refreshTTL:      opts.GetRefreshExpiration(),
		audience:        opts.GetAudience(),
		issuer:          opts.GetIssuer(),
		logger:          defLogger{},
		tokenService:    tokenService,
		activitySink:    noopActivitySink{},
		claimsDecorator: noopClaimsDecorator{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	// Update the TokenService logger as well
	s.tokenService = NewTokenService(
		s.signingKey,
		s.tokenExpiration,
		s.refreshTTL,
		s.issuer,
		s.audience,
		logger,
	)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithClaimsDecorator configures a ClaimsDecorator for enriching JWTs.
func (s *Auther) WithClaimsDecorator(decorator ClaimsDecorator) *Auther {
	s.claimsDecorator = normalizeClaimsDecorator(decorator)
	return s
}

// WithTokenValidator sets a custom token validator for externally issued tokens.
func (s *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	s.tokenValidator = validator
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

func (s *Auther) Login(ctx context.Context, identifier, password string) (*TokenPair, error) {
	var err error
	var identity Identity

	if identity, err = s.provider.VerifyIdentity(ctx, identifier, password); err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      ErrIdentityNotFound.Error(),
		})
		return nil, ErrIdentityNotFound
	}

	pair, err := s.generateTokens(ctx, identity)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromIdentity(identity), identity.ID(), map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, s.actorFromIdentity(identity), identity.ID(), map[string]any{
		"identifier": identifier,
	})

	return pair, nil
}

// Refresh exchanges a refresh token for a fresh token pair. The account is
// re-read so deactivation since issuance voids the refresh token.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.validateRefresh(refreshToken)
	if err != nil {
		s.logger.Error("Refresh token validation failed", "error", err)
		return nil, err
	}

	identity, err := s.provider.FindIdentityByIdentifier(ctx, claims.AccountID())
	if err != nil {
		s.logger.Error("Refresh identity lookup failed", "error", err)
		return nil, err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		return nil, ErrIdentityNotFound
	}

	return s.generateTokens(ctx, identity)
}

func (s *Auther) validateRefresh(refreshToken string) (AuthClaims, error) {
	if rv, ok := s.tokenService.(interface {
		ValidateRefresh(string) (AuthClaims, error)
	}); ok {
		return rv.ValidateRefresh(refreshToken)
	}

	claims, err := s.tokenService.Validate(refreshToken)
	if err != nil {
		return nil, err
	}

	if claims.Use() != TokenUseRefresh {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

func (s *Auther) IdentityFromSession(ctx context.Context, session Session) (Identity, error) {
	identity, err := s.provider.FindIdentityByIdentifier(ctx, session.GetUserID())

	if err != nil {
		s.logger.Error("IdentityFromSession find identity by identifier: %s", err)
		return nil, err
	}

	return identity, nil
}

func (s Auther) SessionFromToken(raw string) (Session, error) {
	validator := s.tokenValidator
	if validator == nil {
		validator = TokenValidatorFunc(s.tokenService.Validate)
	}

	claims, err := validator.Validate(raw)
	if err != nil {
		s.logger.Error("SessionFromToken validation failed", "error", err)
		return nil, err
	}

	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		s.logger.Error("SessionFromToken failed to create session from claims", "error", err)
		return nil, err
	}

	return session, nil
}

// generateTokens mints a token pair after running the claims decorator over
// the access claims.
func (s *Auther) generateTokens(ctx context.Context, identity Identity) (*TokenPair, error) {
	decorator := normalizeClaimsDecorator(s.claimsDecorator)
	if _, ok := decorator.(noopClaimsDecorator); ok {
		return s.tokenService.Generate(identity)
	}

	claims := mintIdentityClaims(identity)
	if err := decorator.Decorate(ctx, identity, claims); err != nil {
		s.logger.Error("claims decorator failed", "error", err)
		return nil, err
	}

	pair, err := s.tokenService.Generate(identity)
	if err != nil {
		return nil, err
	}

	if len(claims.Metadata) > 0 {
		// re-sign the access token with the decorated metadata attached
		enriched, err := s.tokenService.Validate(pair.AccessToken)
		if err != nil {
			return nil, err
		}
		if ic, ok := enriched.(*IdentityClaims); ok {
			ic.Metadata = claims.Metadata
			if pair.AccessToken, err = s.tokenService.SignClaims(ic); err != nil {
				return nil, err
			}
		}
	}

	return pair, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, accountID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		AccountID: accountID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func (s *Auther) actorFromIdentity(identity Identity) ActorRef {
	if identity == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   identity.ID(),
		Type: "account",
	}
}
