package identity

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// Middleware captures the route protection surface the controller needs.
type Middleware interface {
	ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
	AdminRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
	MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error
}

// GetRouterSession decodes the token the JWT middleware stored in locals.
func GetRouterSession(c router.Context, key string) (*SessionObject, error) {
	cookie := c.Locals(key)
	if cookie == nil {
		return nil, ErrUnableToFindSession
	}

	if claims, ok := cookie.(AuthClaims); ok {
		return sessionFromAuthClaims(claims)
	}

	token, ok := cookie.(*jwt.Token)
	if token == nil || !ok {
		return nil, ErrUnableToDecodeSession
	}

	claims, ok := token.Claims.(*IdentityClaims)
	if claims == nil || !ok {
		return nil, ErrUnableToMapClaims
	}

	return sessionFromAuthClaims(claims)
}

// RegisterIdentityRoutes mounts the JSON API onto the router.
func RegisterIdentityRoutes[T any](app router.Router[T], opts ...IdentityControllerOption) {
	controller := NewIdentityController(opts...)

	authErr := controller.Middleware.MakeClientRouteAuthErrorHandler(false)
	protected := controller.Middleware.ProtectedRoute(controller.Config, authErr)
	admin := controller.Middleware.AdminRoute(controller.Config, authErr)

	app.Post(controller.Routes.Register, controller.RegisterPost).
		SetName("auth.register")
	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("auth.login")
	app.Post(controller.Routes.Refresh, controller.RefreshPost).
		SetName("auth.refresh")

	app.Get(controller.Routes.Profile, controller.ProfileGet, protected).
		SetName("profile.get")
	app.Put(controller.Routes.Profile, controller.ProfilePut, protected).
		SetName("profile.put")
	app.Put(controller.Routes.Preferences, controller.PreferencesPut, protected).
		SetName("preferences.put")
	app.Post(fmt.Sprintf("%s/confirm", controller.Routes.Preferences), controller.PreferencesConfirmPost, protected).
		SetName("preferences.confirm")

	app.Post(controller.Routes.PasswordReset, controller.PasswordResetPost).
		SetName("pwd-reset.post")
	app.Get(fmt.Sprintf("%s/:token", controller.Routes.PasswordReset), controller.PasswordResetVerify).
		SetName("pwd-reset-verify.get")
	app.Post(fmt.Sprintf("%s/confirm", controller.Routes.PasswordReset), controller.PasswordResetConfirm).
		SetName("pwd-reset-confirm.post")

	app.Get(controller.Routes.Accounts, controller.AccountsList, admin).
		SetName("accounts.list")
	app.Get(fmt.Sprintf("%s/:id", controller.Routes.Profiles), controller.PublicProfileGet).
		SetName("profiles.get")
}

type IdentityControllerRoutes struct {
	Register      string
	Login         string
	Refresh       string
	Profile       string
	Preferences   string
	PasswordReset string
	Accounts      string
	Profiles      string
}

type IdentityController struct {
	Debug      bool
	Logger     Logger
	Repo       RepositoryManager
	Routes     *IdentityControllerRoutes
	Auther     Authenticator
	Config     Config
	Middleware Middleware
	Mailer     Mailer
	Tokens     *ResetTokenService
	Activity   ActivitySink
	BaseURL    string
}

type IdentityControllerOption func(*IdentityController) *IdentityController

func NewIdentityController(opts ...IdentityControllerOption) *IdentityController {
	c := &IdentityController{
		Logger:   defLogger{},
		Activity: noopActivitySink{},
		Routes: &IdentityControllerRoutes{
			Register:      "/auth/register",
			Login:         "/auth/login",
			Refresh:       "/auth/refresh",
			Profile:       "/profile",
			Preferences:   "/profile/preferences",
			PasswordReset: "/password-reset",
			Accounts:      "/accounts",
			Profiles:      "/profiles",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in identity controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in identity controller...")
	}

	if c.Config == nil {
		panic("Missing Config in identity controller...")
	}

	if c.Tokens == nil {
		c.Tokens = NewResetTokenService([]byte(c.Config.GetResetSecret()), c.Repo.Accounts()).
			WithTTL(c.Config.GetResetTokenTTL())
	}

	if c.Mailer == nil {
		c.Mailer = NewLogMailer(c.Logger)
	}

	return c
}

// WithRepository sets the repository manager.
func WithRepository(repo RepositoryManager) IdentityControllerOption {
	return func(c *IdentityController) *IdentityController {
		c.Repo = repo
		return c
	}
}

// WithAuthenticator sets the authenticator.
func WithAuthenticator(auther Authenticator) IdentityControllerOption {
	return func(c *IdentityController) *IdentityController {
		c.Auther = auther
		return c
	}
}

// WithConfig sets the identity configuration.
func WithConfig(cfg Config) IdentityControllerOption {
	return func(c *IdentityController) *IdentityController {
		c.Config = cfg
		return c
	}
}

// WithMiddleware sets the route protection middleware.
func WithMiddleware(mw Middleware) IdentityControllerOption {
	return func(c *IdentityController) *IdentityController {
		c.Middleware = mw
		return c
	}
}

// WithMailer sets the outbound mailer.
func WithMailer(mailer Mailer) IdentityControllerOption {
	return func(c *IdentityController) *IdentityController {
		c.Mailer = mailer
		return c
	}
}

// WithControllerLogger sets the controller logger.
func WithControllerLogger(logger Logger) IdentityControllerOption {
	return func(c *IdentityController) *IdentityController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithControllerActivitySink sets the audit sink used by the controller.
func WithControllerActivitySink(sink ActivitySink) IdentityControllerOption {
	return func(c *IdentityController) *IdentityController {
		c.Activity = normalizeActivitySink(sink)
		return c
	}
}

// RegisterPayload is the registration request body
type RegisterPayload struct {
	FirstName   string `form:"first_name" json:"first_name"`
	LastName    string `form:"last_name" json:"last_name"`
	Email       string `form:"email" json:"email"`
	Description string `form:"description" json:"description"`
	Password    string `form:"password" json:"password"`
}

// Validate will validate the payload
func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, 100)),
	)
}

func (a *IdentityController) RegisterPost(ctx router.Context) error {
	payload := new(RegisterPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register account parse payload: ", "error", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register account validate payload: ", "error", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		fmt.Println(print.MaybePrettyJSON(payload))
	}

	var res *RegisterAccountResponse
	req := RegisterAccountMessage{
		FirstName:   payload.FirstName,
		LastName:    payload.LastName,
		Email:       payload.Email,
		Description: payload.Description,
		Password:    payload.Password,
		OnResponse: func(resp *RegisterAccountResponse) {
			res = resp
		},
	}

	registerAccount := NewRegisterAccountHandler(a.Repo).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := registerAccount.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("register account error: ", "error", err)
		return RespondWithError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusCreated, map[string]any{
		"account": res.Account,
		"profile": res.Profile,
	})
}

// LoginPayload is the credentials request body
type LoginPayload struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *IdentityController) LoginPost(ctx router.Context) error {
	payload := new(LoginPayload)

	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	pair, err := a.Auther.Login(ctx.Context(), payload.Identifier, payload.Password)
	if err != nil {
		a.Logger.Error("Login error: %s", err)
		return RespondWithError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, pair)
}

// RefreshPayload carries the refresh token
type RefreshPayload struct {
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

// Validate will run validation rules
func (r RefreshPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

func (a *IdentityController) RefreshPost(ctx router.Context) error {
	payload := new(RefreshPayload)

	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	pair, err := a.Auther.Refresh(ctx.Context(), payload.RefreshToken)
	if err != nil {
		a.Logger.Error("Refresh error: %s", err)
		return RespondWithError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, pair)
}

func (a *IdentityController) ProfileGet(ctx router.Context) error {
	account, profile, err := a.currentAccount(ctx)
	if err != nil {
		return RespondWithError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"account": account,
		"profile": profile,
	})
}

// ProfileUpdatePayload is the profile patch body. Pointers keep absent and
// empty values distinguishable.
type ProfileUpdatePayload struct {
	FirstName *string `form:"first_name" json:"first_name,omitempty"`
	LastName  *string `form:"last_name" json:"last_name,omitempty"`
	Avatar    *string `form:"avatar" json:"avatar,omitempty"`
	Bio       *string `form:"bio" json:"bio,omitempty"`
}

func (a *IdentityController) ProfilePut(ctx router.Context) error {
	session, err := GetRouterSession(ctx, a.Config.GetContextKey())
	if err != nil {
		return RespondWithError(ctx, a.Logger, err)
	}

	payload := new(ProfileUpdatePayload)
	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "failed to parse request body",
		})
	}

	var res *UpdateProfileResponse
	req := UpdateProfileMessage{
		AccountID: session.GetUserID(),
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Avatar:    payload.Avatar,
		Bio:       payload.Bio,
		OnResponse: func(resp *UpdateProfileResponse) {
			res = resp
		},
	}

	updateProfile := NewUpdateProfileHandler(a.Repo).WithLogger(a.Logger)
	if err := updateProfile.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("profile update error: ", "error", err)
		return RespondWithError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"account": res.Account,
		"profile": res.Profile,
	})
}

// PreferencesPayload replaces the preferred genre list
type PreferencesPayload struct {
	PreferredGenres []string `form:"preferred_genres" json:"preferred_genres"`
}

func (a *IdentityController) PreferencesPut(ctx router.Context) error {
	session, err := GetRouterSession(ctx, a.Config.GetContextKey())
	if err != nil {
		return RespondWithError(ctx, a.Logger, err)
	}

	payload := new(PreferencesPayload)
	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "failed to parse request body",
		})
	}

	var res *UpdatePreferencesResponse
	req := UpdatePreferencesMessage{
		AccountID:       session.GetUserID(),
		PreferredGenres: payload.PreferredGenres,
		OnResponse: func(resp *UpdatePreferencesResponse) {
			res = resp
		},
	}

	updatePreferences := NewUpdatePreferencesHandler(a.Repo).WithLogger(a.Logger)
	if err := updatePreferences.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("preferences update error: ", "error", err)
		return RespondWithError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"preferred_genres": res.Account.PreferredGenres,
	})
}

func (a *IdentityController) PreferencesConfirmPost(ctx router.Context) error {
	session, err := GetRouterSession(ctx, a.Config.GetContextKey())
	if err != nil {
		return RespondWithError(ctx, a.Logger, err)
	}

	var res *ConfirmPreferencesResponse
	req := ConfirmPreferencesMessage{
		AccountID: session.GetUserID(),
		OnResponse: func(resp *ConfirmPreferencesResponse) {
			res = resp
		},
	}

	confirmPreferences := NewConfirmPreferencesHandler(a.Repo).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := confirmPreferences.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("preferences confirm error: ", "error", err)
		return RespondWithError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"preferences_confirmed": true,
		"already_confirmed":     res.AlreadyConfirmed,
	})
}

// PasswordResetRequestPayload holds values for password reset
type PasswordResetRequestPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r PasswordResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *IdentityController) PasswordResetPost(ctx router.Context) error {
	payload := new(PasswordResetRequestPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload: ", "error", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	req := InitializePasswordResetMessage{
		Email: payload.Email,
	}

	initPwdReset := NewInitializePasswordResetHandler(a.Repo, a.Tokens, a.Mailer).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger).
		WithBaseURL(a.BaseURL)

	if err := initPwdReset.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("password reset init error: ", "error", err)
		return RespondWithError(ctx, a.Logger, err)
	}

	// Same response for known and unknown addresses.
	return ctx.JSON(router.StatusAccepted, map[string]any{
		"message": "If the address is registered, a reset link is on its way",
	})
}

func (a *IdentityController) PasswordResetVerify(ctx router.Context) error {
	token := ctx.Param("token", "")

	var res *VerifyResetTokenResponse
	req := VerifyResetTokenMessage{
		Token: token,
		OnResponse: func(resp *VerifyResetTokenResponse) {
			res = resp
		},
	}

	verify := NewVerifyResetTokenHandler(a.Tokens)
	if err := verify.Execute(ctx.Context(), req); err != nil {
		if IsResetTokenError(err) {
			// a dead token is a page state, not a request failure
			return ctx.JSON(router.StatusOK, map[string]any{
				"valid": false,
			})
		}
		a.Logger.Error("password reset verify error: ", "error", err)
		return RespondWithError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"valid": res.Valid,
		"email": res.Email,
	})
}

// PasswordResetConfirmPayload holds the token plus the replacement password
type PasswordResetConfirmPayload struct {
	Token           string `form:"token" json:"token"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r PasswordResetConfirmPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *IdentityController) PasswordResetConfirm(ctx router.Context) error {
	payload := new(PasswordResetConfirmPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset confirm parse payload: ", "error", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	req := FinalizePasswordResetMessage{
		Token:    payload.Token,
		Password: payload.Password,
	}

	finalizePwdReset := NewFinalizePasswordResetHandler(a.Repo, a.Tokens).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := finalizePwdReset.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("password reset confirm error: ", "error", err)
		return RespondWithError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "password updated",
	})
}

func (a *IdentityController) AccountsList(ctx router.Context) error {
	accounts, _, err := a.Repo.Accounts().List(ctx.Context())
	if err != nil {
		a.Logger.Error("accounts list error: ", "error", err)
		return RespondWithError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

func (a *IdentityController) PublicProfileGet(ctx router.Context) error {
	id := ctx.Param("id", "")

	account, err := a.Repo.Accounts().GetByID(ctx.Context(), id)
	if err != nil {
		return RespondWithError(ctx, a.Logger, goerrors.Wrap(err, goerrors.CategoryNotFound, "profile not found"))
	}

	profile, err := a.Repo.Profiles().GetByAccountID(ctx.Context(), account.ID)
	if err != nil {
		return RespondWithError(ctx, a.Logger, goerrors.Wrap(err, goerrors.CategoryNotFound, "profile not found"))
	}

	return ctx.JSON(router.StatusOK, NewPublicProfile(account, profile))
}

func (a *IdentityController) currentAccount(ctx router.Context) (*Account, *Profile, error) {
	session, err := GetRouterSession(ctx, a.Config.GetContextKey())
	if err != nil {
		return nil, nil, err
	}

	account, err := a.Repo.Accounts().GetByID(ctx.Context(), session.GetUserID())
	if err != nil {
		return nil, nil, ErrIdentityNotFound
	}

	profile, err := a.Repo.Profiles().GetByAccountID(ctx.Context(), account.ID)
	if err != nil {
		return nil, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account has no companion profile")
	}

	return account, profile, nil
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return fmt.Errorf("values must match")
		}
		return nil
	}
}
