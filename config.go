package identity

import (
	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
)

// EnvConfig is an environment-driven Config implementation.
type EnvConfig struct {
	SigningKey        string   `env:"IDENTITY_SIGNING_KEY"`
	SigningMethod     string   `env:"IDENTITY_SIGNING_METHOD" envDefault:"HS256"`
	ContextKey        string   `env:"IDENTITY_CONTEXT_KEY" envDefault:"user"`
	TokenExpiration   int      `env:"IDENTITY_TOKEN_EXPIRATION" envDefault:"24"`
	RefreshExpiration int      `env:"IDENTITY_REFRESH_EXPIRATION" envDefault:"7"`
	TokenLookup       string   `env:"IDENTITY_TOKEN_LOOKUP" envDefault:"header:Authorization"`
	AuthScheme        string   `env:"IDENTITY_AUTH_SCHEME" envDefault:"Bearer"`
	Issuer            string   `env:"IDENTITY_ISSUER"`
	Audience          []string `env:"IDENTITY_AUDIENCE" envSeparator:","`
	ResetSecret       string   `env:"IDENTITY_RESET_SECRET"`
	ResetTokenTTL     string   `env:"IDENTITY_RESET_TOKEN_TTL" envDefault:"2h"`

	SMTP SMTPEnv `envPrefix:"IDENTITY_SMTP_"`
}

// SMTPEnv carries mailer settings sourced from the environment.
type SMTPEnv struct {
	Host      string `env:"HOST"`
	Port      int    `env:"PORT" envDefault:"587"`
	Username  string `env:"USERNAME"`
	Password  string `env:"PASSWORD"`
	TLSMode   string `env:"TLS_MODE" envDefault:"starttls"`
	FromName  string `env:"FROM_NAME"`
	FromEmail string `env:"FROM_EMAIL"`
}

var _ Config = (*EnvConfig)(nil)

// NewConfigFromEnv loads configuration from environment variables.
func NewConfigFromEnv() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse identity config from environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures the secrets this package cannot run without are present.
func (c *EnvConfig) Validate() error {
	if c.SigningKey == "" {
		return goerrors.New("IDENTITY_SIGNING_KEY is required", goerrors.CategoryValidation)
	}

	if c.ResetSecret == "" {
		return goerrors.New("IDENTITY_RESET_SECRET is required", goerrors.CategoryValidation)
	}

	return nil
}

func (c *EnvConfig) GetSigningKey() string      { return c.SigningKey }
func (c *EnvConfig) GetSigningMethod() string   { return c.SigningMethod }
func (c *EnvConfig) GetContextKey() string      { return c.ContextKey }
func (c *EnvConfig) GetTokenExpiration() int    { return c.TokenExpiration }
func (c *EnvConfig) GetRefreshExpiration() int  { return c.RefreshExpiration }
func (c *EnvConfig) GetTokenLookup() string     { return c.TokenLookup }
func (c *EnvConfig) GetAuthScheme() string      { return c.AuthScheme }
func (c *EnvConfig) GetIssuer() string          { return c.Issuer }
func (c *EnvConfig) GetAudience() []string      { return c.Audience }
func (c *EnvConfig) GetResetSecret() string     { return c.ResetSecret }
func (c *EnvConfig) GetResetTokenTTL() string   { return c.ResetTokenTTL }
func (c *EnvConfig) GetSMTPSettings() SMTPSettings {
	return SMTPSettings{
		Host:      c.SMTP.Host,
		Port:      c.SMTP.Port,
		Username:  c.SMTP.Username,
		Password:  c.SMTP.Password,
		TLSMode:   c.SMTP.TLSMode,
		FromName:  c.SMTP.FromName,
		FromEmail: c.SMTP.FromEmail,
	}
}
