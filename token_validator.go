package identity

// TokenValidator turns a raw token string into structured claims. It is the
// seam that lets route middleware accept bearer tokens from more than one
// issuer without caring how each is signed.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a plain function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate satisfies the TokenValidator interface. A nil func is treated as
// a validator that can never decode anything.
func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	if f == nil {
		return nil, ErrUnableToDecodeSession
	}
	return f(tokenString)
}

// MultiTokenValidator chains validators, accepting the first claim set any
// of them produces. A validator reporting a malformed token hands the string
// to the next in the chain; any other failure is final, so an expired or
// tampered token is never retried against a different issuer.
type MultiTokenValidator struct {
	chain []TokenValidator
}

// NewMultiTokenValidator builds a chain from the given validators, skipping
// nil entries.
func NewMultiTokenValidator(validators ...TokenValidator) *MultiTokenValidator {
	chain := make([]TokenValidator, 0, len(validators))
	for _, v := range validators {
		if v != nil {
			chain = append(chain, v)
		}
	}
	return &MultiTokenValidator{chain: chain}
}

// Validate satisfies the TokenValidator interface. When every validator in
// the chain rejects the token as malformed, the last such error is returned;
// an empty chain reports ErrTokenMalformed.
func (m *MultiTokenValidator) Validate(tokenString string) (AuthClaims, error) {
	var lastMalformed error
	for _, v := range m.chain {
		claims, err := v.Validate(tokenString)
		if err == nil {
			return claims, nil
		}
		if !IsMalformedError(err) {
			return nil, err
		}
		lastMalformed = err
	}
	if lastMalformed != nil {
		return nil, lastMalformed
	}
	return nil, ErrTokenMalformed
}
