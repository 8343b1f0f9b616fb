package users

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenPurpose scopes a signed token to a single use class via the audience
// claim. A token minted for one purpose never validates for another.
type TokenPurpose string

const (
	// TokenPurposeAccess is the API bearer token audience.
	TokenPurposeAccess TokenPurpose = "users:auth"
	// TokenPurposeReset is the password reset token audience.
	TokenPurposeReset TokenPurpose = "users:reset"
	// TokenPurposeVerify is the email verification token audience.
	TokenPurposeVerify TokenPurpose = "users:verify"
)

// DefaultTokenLifetime is the fixed bearer token lifetime. Expiry is
// absolute from issuance; there are no refresh tokens and no revocation.
const DefaultTokenLifetime = 24 * time.Hour

// TokenClaims are the signed claims carried by every token this service
// mints. Fingerprint and Email are populated only on purpose-scoped tokens.
type TokenClaims struct {
	jwt.RegisteredClaims
	// Fingerprint binds reset tokens to the password hash current at
	// issuance, making them single use.
	Fingerprint string `json:"fgpt,omitempty"`
	// Email binds verification tokens to the address they were issued for.
	Email string `json:"email,omitempty"`
}

// UserID parses the subject claim back into the numeric user id.
func (c *TokenClaims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrTokenMalformed
	}
	return id, nil
}

// TokenService mints and validates the signed tokens of the API trust
// domain. Issuance and validation are pure computations over a process-wide
// static secret; the service is safe for unsynchronized concurrent use.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
	issuer   string
	logger   Logger
	now      func() time.Time
}

// NewTokenService creates a TokenService. A zero lifetime falls back to
// DefaultTokenLifetime.
func NewTokenService(secret TokenSecret, lifetime time.Duration, issuer string, logger Logger) *TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	return &TokenService{
		secret:   secret.Bytes(),
		lifetime: lifetime,
		issuer:   issuer,
		logger:   logger,
		now:      time.Now,
	}
}

// WithTimeFunc overrides the clock. Tests use it to cross expiry boundaries.
func (ts *TokenService) WithTimeFunc(now func() time.Time) *TokenService {
	if now != nil {
		ts.now = now
	}
	return ts
}

// Lifetime returns the configured access token lifetime.
func (ts *TokenService) Lifetime() time.Duration {
	return ts.lifetime
}

// Issue mints an access token for userID. The expiry returned alongside the
// token is absolute from issuance.
func (ts *TokenService) Issue(userID int64) (string, time.Time, error) {
	return ts.sign(userID, TokenPurposeAccess, ts.lifetime, nil)
}

// IssueReset mints a password reset token bound to the password hash current
// at issuance. Changing the password invalidates outstanding reset tokens.
func (ts *TokenService) IssueReset(userID int64, passwordHash string, lifetime time.Duration) (string, time.Time, error) {
	return ts.sign(userID, TokenPurposeReset, lifetime, func(claims *TokenClaims) {
		claims.Fingerprint = HashFingerprint(passwordHash)
	})
}

// IssueVerification mints an email verification token bound to the address
// it was requested for.
func (ts *TokenService) IssueVerification(userID int64, email string, lifetime time.Duration) (string, time.Time, error) {
	return ts.sign(userID, TokenPurposeVerify, lifetime, func(claims *TokenClaims) {
		claims.Email = email
	})
}

func (ts *TokenService) sign(userID int64, purpose TokenPurpose, lifetime time.Duration, decorate func(*TokenClaims)) (string, time.Time, error) {
	if lifetime <= 0 {
		lifetime = ts.lifetime
	}

	issuedAt := ts.now()
	expiresAt := issuedAt.Add(lifetime)

	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			Audience:  jwt.ClaimStrings{string(purpose)},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	if decorate != nil {
		decorate(claims)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.secret)
	if err != nil {
		return "", time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}

	return signed, expiresAt, nil
}

// Validate parses tokenString and checks signature, expiry, issuer, and the
// purpose audience. It fails closed: every rejection is ErrTokenExpired or
// ErrTokenMalformed, never partial trust.
func (ts *TokenService) Validate(tokenString string, purpose TokenPurpose) (*TokenClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithAudience(string(purpose)),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		options = append(options, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.secret, nil
	}, options...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		ts.logger.Error("token validate could not decode claims")
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// HashFingerprint derives the non-reversible fingerprint reset tokens carry.
func HashFingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:])
}
