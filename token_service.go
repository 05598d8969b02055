package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenPair bundles the access token with its refresh companion.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// TokenService issues and validates signed JWTs.
type TokenService interface {
	Generate(identity Identity) (*TokenPair, error)
	SignClaims(claims *IdentityClaims) (string, error)
	Validate(tokenString string) (AuthClaims, error)
	ValidateRefresh(tokenString string) (AuthClaims, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey        []byte
	tokenExpiration   int
	refreshExpiration int
	issuer            string
	audience          jwt.ClaimStrings
	logger            Logger
}

// NewTokenService creates a new TokenService instance. Expirations are in
// hours for the access token and in days for the refresh token.
func NewTokenService(signingKey []byte, tokenExpiration, refreshExpiration int, issuer string, audience jwt.ClaimStrings, logger Logger) TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		signingKey:        signingKey,
		tokenExpiration:   tokenExpiration,
		refreshExpiration: refreshExpiration,
		issuer:            issuer,
		audience:          audience,
		logger:            logger,
	}
}

// Generate creates an access/refresh token pair for the identity
func (ts *TokenServiceImpl) Generate(identity Identity) (*TokenPair, error) {
	now := time.Now()

	access := ts.newClaims(identity, now, TokenUseAccess)
	accessToken, err := ts.SignClaims(access)
	if err != nil {
		return nil, err
	}

	refresh := ts.newClaims(identity, now, TokenUseRefresh)
	refreshToken, err := ts.SignClaims(refresh)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    access.Expires(),
	}, nil
}

func (ts *TokenServiceImpl) newClaims(identity Identity, now time.Time, use string) *IdentityClaims {
	ttl := time.Duration(ts.tokenExpiration) * time.Hour
	if use == TokenUseRefresh {
		ttl = time.Duration(ts.refreshExpiration) * 24 * time.Hour
	}

	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	claims := mintIdentityClaims(identity)
	claims.TokenUse = use
	claims.RegisteredClaims.Issuer = ts.issuer
	claims.RegisteredClaims.Audience = aud
	claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)
	claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	ensureTokenID(&claims.RegisteredClaims)

	return claims
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *IdentityClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &IdentityClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*IdentityClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrUnableToDecodeSession
}

// ValidateRefresh validates a token and requires the refresh use marker, so
// an access token can never be replayed against the refresh endpoint.
func (ts *TokenServiceImpl) ValidateRefresh(tokenString string) (AuthClaims, error) {
	claims, err := ts.Validate(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.Use() != TokenUseRefresh {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}
