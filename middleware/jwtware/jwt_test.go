package jwtware_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"

	"github.com/goliatone/go-identity/middleware/jwtware"
)

type stubClaims struct {
	sub   string
	name  string
	admin bool
	use   string
}

func (c stubClaims) Subject() string   { return c.sub }
func (c stubClaims) AccountID() string { return c.sub }
func (c stubClaims) GivenName() string { return c.name }
func (c stubClaims) IsAdmin() bool     { return c.admin }
func (c stubClaims) Use() string       { return c.use }

type stubValidator struct {
	claims jwtware.AuthClaims
	err    error
	seen   []string
}

func (v *stubValidator) Validate(tokenString string) (jwtware.AuthClaims, error) {
	v.seen = append(v.seen, tokenString)
	if v.err != nil {
		return nil, v.err
	}
	return v.claims, nil
}

func TestJWTWare_BasicHeaderExtraction(t *testing.T) {
	validator := &stubValidator{claims: stubClaims{sub: "12345", use: "access"}}

	cfg := jwtware.Config{
		SigningKey: jwtware.SigningKey{
			Key:    []byte("test-secret"),
			JWTAlg: "HS256",
		},
		TokenValidator: validator,
		SuccessHandler: func(ctx router.Context) error {
			return ctx.Next()
		},
		ErrorHandler: func(ctx router.Context, err error) error {
			return err
		},
		// it will look for Authorization: Bearer <token>
	}

	middleware := jwtware.New(cfg)

	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer some.jwt.token"
	ctx.On("GetString", "Authorization", "").Return("Bearer some.jwt.token")
	ctx.On("Locals", "user", mock.Anything).Return(nil)

	err := middleware(ctx)
	if err != nil {
		t.Fatalf("unexpected error for valid token: %v", err)
	}
	if !ctx.NextCalled {
		t.Errorf("expected NextCalled to be true, but got false")
	}
	if len(validator.seen) != 1 || validator.seen[0] != "some.jwt.token" {
		t.Errorf("expected validator to receive the raw token, got: %v", validator.seen)
	}

	// Test with missing token
	ctx = router.NewMockContext()
	ctx.On("GetString", "Authorization", "").Return("")
	err = middleware(ctx)
	if err == nil {
		t.Fatal("expected error for missing token, got nil")
	}
	if !strings.Contains(err.Error(), jwtware.ErrJWTMissingOrMalformed.Error()) {
		t.Errorf("expected missing token error, got: %v", err)
	}
}

func TestJWTWare_ValidatorError(t *testing.T) {
	validator := &stubValidator{err: errors.New("authentication token is expired")}

	cfg := jwtware.Config{
		SigningKey: jwtware.SigningKey{
			Key:    []byte("test-secret"),
			JWTAlg: "HS256",
		},
		TokenValidator: validator,
		ErrorHandler: func(c router.Context, err error) error {
			return err
		},
	}
	middleware := jwtware.New(cfg)

	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer expired.jwt.token"
	ctx.On("GetString", "Authorization", "").Return("Bearer expired.jwt.token")

	err := middleware(ctx)
	if err == nil {
		t.Fatal("expected error for expired token, got nil")
	}
	if !strings.Contains(err.Error(), "token is expired") {
		t.Errorf("expected token expired error, got: %v", err)
	}
}

func TestJWTWare_AdminOnly(t *testing.T) {
	tests := []struct {
		name      string
		claims    stubClaims
		wantError bool
	}{
		{
			name:   "admin claims pass",
			claims: stubClaims{sub: "a-1", admin: true},
		},
		{
			name:      "non admin claims rejected",
			claims:    stubClaims{sub: "a-2", admin: false},
			wantError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			validator := &stubValidator{claims: tc.claims}

			cfg := jwtware.Config{
				SigningKey: jwtware.SigningKey{
					Key:    []byte("test-secret"),
					JWTAlg: "HS256",
				},
				TokenValidator: validator,
				AdminOnly:      true,
				ErrorHandler: func(c router.Context, err error) error {
					return err
				},
			}
			middleware := jwtware.New(cfg)

			ctx := router.NewMockContext()
			ctx.HeadersM["Authorization"] = "Bearer some.jwt.token"
			ctx.On("GetString", "Authorization", "").Return("Bearer some.jwt.token")
			ctx.On("Locals", "user", mock.Anything).Return(nil).Maybe()

			err := middleware(ctx)
			if tc.wantError {
				if err == nil {
					t.Fatal("expected admin gate error, got nil")
				}
				if !strings.Contains(err.Error(), jwtware.ErrAdminRequired.Error()) {
					t.Errorf("expected admin required error, got: %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("expected no error for admin claims, got %v", err)
			}
			if !ctx.NextCalled {
				t.Error("expected Next() to be invoked for admin claims")
			}
		})
	}
}

func TestJWTWare_AdminChecker(t *testing.T) {
	validator := &stubValidator{claims: stubClaims{sub: "a-3", admin: false}}

	cfg := jwtware.Config{
		SigningKey: jwtware.SigningKey{
			Key:    []byte("test-secret"),
			JWTAlg: "HS256",
		},
		TokenValidator: validator,
		AdminOnly:      true,
		AdminChecker: func(claims jwtware.AuthClaims) bool {
			// custom logic overrides the flag entirely
			return claims.Subject() == "a-3"
		},
		ErrorHandler: func(c router.Context, err error) error {
			return err
		},
	}
	middleware := jwtware.New(cfg)

	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer some.jwt.token"
	ctx.On("GetString", "Authorization", "").Return("Bearer some.jwt.token")
	ctx.On("Locals", "user", mock.Anything).Return(nil)

	if err := middleware(ctx); err != nil {
		t.Fatalf("expected custom checker to allow request, got %v", err)
	}
}

// customPathMock overrides Path() from our base MockContext.
type customPathMock struct {
	*router.MockContext
	pathOverride string
}

func (m *customPathMock) Path() string {
	return m.pathOverride
}

func TestJWTWare_FilterFunction(t *testing.T) {
	validator := &stubValidator{claims: stubClaims{sub: "12345"}}

	cfg := jwtware.Config{
		SigningKey: jwtware.SigningKey{
			Key:    []byte("test-secret"),
			JWTAlg: "HS256",
		},
		TokenValidator: validator,
		Filter: func(ctx router.Context) bool {
			// skip the middleware on "/public"
			return ctx.Path() == "/public"
		},
	}
	middleware := jwtware.New(cfg)

	ctx := &customPathMock{
		MockContext:  router.NewMockContext(),
		pathOverride: "/public",
	}

	// because Filter returns true for Path() == "/public",
	// the middleware should skip token checking and call ctx.Next()
	err := middleware(ctx)
	if err != nil {
		t.Fatalf("expected no error because Filter should skip, got %v", err)
	}
	if !ctx.NextCalled {
		t.Errorf("expected Next() to be invoked due to Filter skip")
	}
	if len(validator.seen) != 0 {
		t.Errorf("expected validator to be skipped, saw tokens: %v", validator.seen)
	}
}

func TestJWTWare_ValidationListeners(t *testing.T) {
	validator := &stubValidator{claims: stubClaims{sub: "12345", name: "Ada"}}

	var listenerClaims jwtware.AuthClaims
	cfg := jwtware.Config{
		SigningKey: jwtware.SigningKey{
			Key:    []byte("test-secret"),
			JWTAlg: "HS256",
		},
		TokenValidator: validator,
		ValidationListeners: []jwtware.ValidationListener{
			func(ctx router.Context, claims jwtware.AuthClaims) error {
				listenerClaims = claims
				return nil
			},
		},
	}
	middleware := jwtware.New(cfg)

	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer some.jwt.token"
	ctx.On("GetString", "Authorization", "").Return("Bearer some.jwt.token")
	ctx.On("Locals", "user", mock.Anything).Return(nil)

	if err := middleware(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if listenerClaims == nil {
		t.Fatal("expected validation listener to receive claims")
	}
	if listenerClaims.GivenName() != "Ada" {
		t.Errorf("expected listener to see given name, got %q", listenerClaims.GivenName())
	}
}

func TestJWTWare_Extractors(t *testing.T) {
	validator := &stubValidator{claims: stubClaims{sub: "12345"}}

	cfg := jwtware.GetDefaultConfig(jwtware.Config{
		SigningKey: jwtware.SigningKey{
			Key:    []byte("test-secret"),
			JWTAlg: "HS256",
		},
		TokenValidator: validator,
		ErrorHandler: func(c router.Context, err error) error {
			return err
		},
		SuccessHandler: func(ctx router.Context) error {
			return ctx.Next()
		},
		// This instructs the middleware to look in multiple places, in order:
		// 1. Authorization header
		// 2. Query param "jwt"
		// 3. URL param "token"
		// 4. Cookie named "jwt_cookie"
		TokenLookup: "header:Authorization,query:jwt,param:token,cookie:jwt_cookie",
	})

	middleware := jwtware.New(cfg)

	tests := []struct {
		name      string
		setToken  func(*router.MockContext)
		wantError bool
	}{
		{
			name: "token in header -> success",
			setToken: func(ctx *router.MockContext) {
				ctx.HeadersM["Authorization"] = "Bearer raw.jwt"
				ctx.On("GetString", "Authorization", "").Return("Bearer raw.jwt").Maybe()
				ctx.On("Locals", cfg.ContextKey, mock.Anything).Return(nil).Maybe()
			},
		},
		{
			name: "token in query -> success",
			setToken: func(ctx *router.MockContext) {
				ctx.QueriesM["jwt"] = "raw.jwt"
				ctx.On("GetString", "Authorization", "").Return("").Maybe()
				ctx.On("GetString", "jwt", "").Return("raw.jwt").Maybe()
				ctx.On("Locals", cfg.ContextKey, mock.Anything).Return(nil).Maybe()
			},
		},
		{
			name: "token in param -> success",
			setToken: func(ctx *router.MockContext) {
				ctx.ParamsM["token"] = "raw.jwt"
				ctx.On("GetString", "Authorization", "").Return("").Maybe()
				ctx.On("GetString", "jwt", "").Return("").Maybe()
				ctx.On("GetString", "token", "").Return("raw.jwt").Maybe()
				ctx.On("Locals", cfg.ContextKey, mock.Anything).Return(nil).Maybe()
			},
		},
		{
			name: "token in cookie -> success",
			setToken: func(ctx *router.MockContext) {
				ctx.CookiesM["jwt_cookie"] = "raw.jwt"
				ctx.On("GetString", "Authorization", "").Return("").Maybe()
				ctx.On("GetString", "jwt", "").Return("").Maybe()
				ctx.On("GetString", "token", "").Return("").Maybe()
				ctx.On("GetString", "jwt_cookie", "").Return("raw.jwt").Maybe()
				ctx.On("Locals", cfg.ContextKey, mock.Anything).Return(nil).Maybe()
			},
		},
		{
			name: "no token anywhere -> error",
			setToken: func(ctx *router.MockContext) {
				ctx.On("GetString", "Authorization", "").Return("").Maybe()
				ctx.On("GetString", "jwt", "").Return("").Maybe()
				ctx.On("GetString", "token", "").Return("").Maybe()
				ctx.On("GetString", "jwt_cookie", "").Return("").Maybe()
			},
			wantError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := router.NewMockContext()
			tc.setToken(ctx)

			err := middleware(ctx)
			if tc.wantError {
				if err == nil {
					t.Errorf("expected an error, but got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if !ctx.NextCalled {
				t.Errorf("middleware did not call Next() on success")
			}
		})
	}
}
