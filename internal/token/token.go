// Package token issues and verifies the signed, expiring tokens that gate
// account lifecycle transitions: session tokens, email verification tokens
// and password reset tokens.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-account-service/internal/model"
)

type Purpose string

const (
	PurposeSession      Purpose = "session"
	PurposeVerification Purpose = "verify_email"
	PurposeReset        Purpose = "reset_password"
)

const (
	DefaultSessionTTL      = 24 * time.Hour
	DefaultVerificationTTL = 15 * time.Minute
	DefaultResetTTL        = time.Hour
)

// Claims is the payload carried by every token. Subject holds the account id
// for session tokens; Email is set on verification and reset tokens.
type Claims struct {
	Purpose  Purpose `json:"typ"`
	Username string  `json:"username,omitempty"`
	Email    string  `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type ErrorKind int

const (
	Malformed ErrorKind = iota + 1
	SignatureInvalid
	Expired
)

func (k ErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case SignatureInvalid:
		return "signature_invalid"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Error keeps the precise verification failure for logs and tests while
// matching model.ErrInvalidToken for everything outside this package.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "token " + e.Kind.String()
	}
	return fmt.Sprintf("token %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == model.ErrInvalidToken
}

// KindOf returns the verification failure kind carried by err, or 0.
func KindOf(err error) ErrorKind {
	var tokenErr *Error
	if errors.As(err, &tokenErr) {
		return tokenErr.Kind
	}
	return 0
}

type Config struct {
	Secret          string
	Issuer          string
	SessionTTL      time.Duration
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	Now             func() time.Time
}

// Manager signs and verifies HS256 tokens with a process-wide secret that is
// fixed for the lifetime of the Manager.
type Manager struct {
	secret          []byte
	issuer          string
	sessionTTL      time.Duration
	verificationTTL time.Duration
	resetTTL        time.Duration
	now             func() time.Time
}

func NewManager(cfg Config) (*Manager, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("token signing secret is required")
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.VerificationTTL == 0 {
		cfg.VerificationTTL = DefaultVerificationTTL
	}
	if cfg.ResetTTL == 0 {
		cfg.ResetTTL = DefaultResetTTL
	}
	if cfg.SessionTTL < 0 || cfg.VerificationTTL < 0 || cfg.ResetTTL < 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Manager{
		secret:          []byte(cfg.Secret),
		issuer:          cfg.Issuer,
		sessionTTL:      cfg.SessionTTL,
		verificationTTL: cfg.VerificationTTL,
		resetTTL:        cfg.ResetTTL,
		now:             cfg.Now,
	}, nil
}

func (m *Manager) SessionTTL() time.Duration { return m.sessionTTL }

func (m *Manager) VerificationTTL() time.Duration { return m.verificationTTL }

func (m *Manager) ResetTTL() time.Duration { return m.resetTTL }

// Issue signs claims with an absolute expiry of now+lifetime. IssuedAt, ID and
// Issuer are filled in when empty.
func (m *Manager) Issue(claims Claims, lifetime time.Duration) (string, time.Time, error) {
	if claims.Purpose == "" {
		return "", time.Time{}, errors.New("token purpose is required")
	}
	if lifetime <= 0 {
		return "", time.Time{}, errors.New("token lifetime must be positive")
	}

	now := m.now().UTC()
	expiresAt := jwt.NewNumericDate(now.Add(lifetime))
	claims.ExpiresAt = expiresAt
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
	if claims.Issuer == "" {
		claims.Issuer = m.issuer
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", claims.Purpose, err)
	}
	return signed, expiresAt.Time, nil
}

func (m *Manager) IssueSession(accountID string, username string) (string, time.Time, error) {
	return m.Issue(Claims{
		Purpose:          PurposeSession,
		Username:         username,
		RegisteredClaims: jwt.RegisteredClaims{Subject: accountID},
	}, m.sessionTTL)
}

func (m *Manager) IssueVerification(email string) (string, time.Time, error) {
	return m.Issue(Claims{Purpose: PurposeVerification, Email: email}, m.verificationTTL)
}

func (m *Manager) IssueReset(email string) (string, time.Time, error) {
	return m.Issue(Claims{Purpose: PurposeReset, Email: email}, m.resetTTL)
}

// Verify checks signature, algorithm and expiry before looking at any claim,
// then requires the token to carry the expected purpose.
func (m *Manager) Verify(tokenString string, purpose Purpose) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, &Error{Kind: Malformed, Err: errors.New("empty token")}
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, &Error{Kind: classify(err), Err: err}
	}
	if !parsed.Valid {
		return nil, &Error{Kind: Malformed, Err: errors.New("token not valid")}
	}

	if claims.Purpose != purpose {
		return nil, &Error{Kind: Malformed, Err: fmt.Errorf("unexpected token purpose %q", claims.Purpose)}
	}

	switch purpose {
	case PurposeSession:
		if claims.Subject == "" {
			return nil, &Error{Kind: Malformed, Err: errors.New("session token without subject")}
		}
	case PurposeVerification, PurposeReset:
		if claims.Email == "" {
			return nil, &Error{Kind: Malformed, Err: errors.New("token without email claim")}
		}
	}

	return claims, nil
}

// VerifySession is the view of Verify the auth gate depends on.
func (m *Manager) VerifySession(tokenString string) (*model.SessionClaims, error) {
	claims, err := m.Verify(tokenString, PurposeSession)
	if err != nil {
		return nil, err
	}
	return &model.SessionClaims{
		AccountID: claims.Subject,
		Username:  claims.Username,
		TokenID:   claims.ID,
	}, nil
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return SignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return Expired
	default:
		return Malformed
	}
}
