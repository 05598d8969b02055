package identity

import (
	"net/http"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity/middleware/jwtware"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteAuthenticator wires the Authenticator into HTTP middleware.
type RouteAuthenticator struct {
	auth         Authenticator
	cfg          Config
	validators   []TokenValidator
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	a := &RouteAuthenticator{
		cfg:    cfg,
		auth:   auther,
		Logger: defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

// ProtectedRoute guards a route behind a valid bearer token.
func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return a.makeRoute(cfg, errorHandler, false)
}

// AdminRoute guards a route behind a valid bearer token carrying the admin
// flag.
func (a *RouteAuthenticator) AdminRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return a.makeRoute(cfg, errorHandler, true)
}

func (a *RouteAuthenticator) makeRoute(cfg Config, errorHandler func(router.Context, error) error, adminOnly bool) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return jwtware.New(jwtware.Config{
			ErrorHandler: errorHandler,
			SigningKey: jwtware.SigningKey{
				Key:    []byte(cfg.GetSigningKey()),
				JWTAlg: cfg.GetSigningMethod(),
			},
			AuthScheme:     cfg.GetAuthScheme(),
			ContextKey:     cfg.GetContextKey(),
			TokenLookup:    cfg.GetTokenLookup(),
			AdminOnly:      adminOnly,
			TokenValidator: tokenValidatorAdapter{claims: a.claimsFromToken},
		})(hf)
	}
}

// WithTokenValidators registers fallback validators for bearer tokens the
// authenticator's own token service cannot parse, e.g. tokens minted by an
// external issuer. They are tried in registration order after the primary.
func (a *RouteAuthenticator) WithTokenValidators(validators ...TokenValidator) *RouteAuthenticator {
	a.validators = append(a.validators, validators...)
	return a
}

// claimsFromToken validates a raw token and returns the structured claims.
func (a *RouteAuthenticator) claimsFromToken(raw string) (AuthClaims, error) {
	claims, err := a.tokenValidator().Validate(raw)
	if err != nil {
		return nil, err
	}
	if claims.Use() != TokenUseAccess {
		// refresh tokens are not valid bearer credentials
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func (a *RouteAuthenticator) tokenValidator() TokenValidator {
	primary := TokenValidatorFunc(func(raw string) (AuthClaims, error) {
		type claimsValidator interface {
			TokenService() TokenService
		}
		cv, ok := a.auth.(claimsValidator)
		if !ok {
			return nil, ErrUnableToDecodeSession
		}
		return cv.TokenService().Validate(raw)
	})

	if len(a.validators) == 0 {
		return primary
	}

	chain := make([]TokenValidator, 0, len(a.validators)+1)
	chain = append(chain, primary)
	chain = append(chain, a.validators...)
	return NewMultiTokenValidator(chain...)
}

// tokenValidatorAdapter bridges the identity claim types into the middleware
// package without an import cycle.
type tokenValidatorAdapter struct {
	claims func(string) (AuthClaims, error)
}

func (t tokenValidatorAdapter) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := t.claims(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// MakeClientRouteAuthErrorHandler normalizes middleware failures. With
// optional set the request proceeds unauthenticated instead of failing.
func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("Optional auth failed, proceeding", "error", richErr.Message)
			return ctx.Next()
		}

		return a.ErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	return RespondWithError(c, a.Logger, err)
}

// RespondWithError maps a categorized error onto a JSON response.
func RespondWithError(c router.Context, logger Logger, err error) error {
	if logger == nil {
		logger = defLogger{}
	}

	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	logger.Info(
		"Request error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	status := richErr.Code
	if status == 0 {
		status = statusFromCategory(richErr.Category)
	}

	body := map[string]any{
		"error": richErr.Message,
	}
	if richErr.TextCode != "" {
		body["text_code"] = richErr.TextCode
	}
	if len(richErr.Metadata) > 0 {
		body["metadata"] = richErr.Metadata
	}

	return c.JSON(status, body)
}

func statusFromCategory(category errors.Category) int {
	switch category {
	case errors.CategoryValidation, errors.CategoryBadInput:
		return http.StatusBadRequest
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
