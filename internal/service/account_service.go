package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"go-account-service/internal/event"
	"go-account-service/internal/metrics"
	"go-account-service/internal/model"
	"go-account-service/internal/notify"
	"go-account-service/internal/security"
	"go-account-service/internal/token"
	"go-account-service/internal/util"
)

var tracer = otel.Tracer("go-account-service/service")

// timingPassword is hashed once at startup so logins for unknown emails spend
// as long in the hasher as logins for known ones.
const timingPassword = "timing-equalization-password"

type AccountStore interface {
	Create(ctx context.Context, account model.Account) error
	FindByID(ctx context.Context, id string) (model.Account, error)
	FindByEmail(ctx context.Context, email string) (model.Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	MarkVerified(ctx context.Context, id string, token string, at time.Time) error
	SetResetToken(ctx context.Context, id string, token string, expiry time.Time, at time.Time) error
	FindByResetToken(ctx context.Context, token string, now time.Time) (model.Account, error)
	CompleteReset(ctx context.Context, id string, token string, passwordHash string, now time.Time) error
	ClearExpiredResets(ctx context.Context, now time.Time) (int64, error)
}

type TokenIssuer interface {
	IssueSession(accountID string, username string) (string, time.Time, error)
	IssueVerification(email string) (string, time.Time, error)
	IssueReset(email string) (string, time.Time, error)
	Verify(tokenString string, purpose token.Purpose) (*token.Claims, error)
	ResetTTL() time.Duration
}

type AccountServiceConfig struct {
	Templates notify.Templates
	Now       func() time.Time
}

// AccountService drives the account lifecycle:
// Unregistered -> PendingVerification -> Active, with ResetRequested as an
// orthogonal flag on any account.
type AccountService struct {
	store     AccountStore
	hasher    security.Hasher
	tokens    TokenIssuer
	notifier  notify.Notifier
	bus       event.Bus
	metrics   *metrics.Metrics
	templates notify.Templates
	now       func() time.Time
	dummyHash string
}

func NewAccountService(
	store AccountStore,
	hasher security.Hasher,
	tokens TokenIssuer,
	notifier notify.Notifier,
	bus event.Bus,
	m *metrics.Metrics,
	cfg AccountServiceConfig,
) (*AccountService, error) {
	if store == nil || hasher == nil || tokens == nil || notifier == nil {
		return nil, errors.New("account service requires a store, hasher, token issuer and notifier")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	dummyHash, err := hasher.Hash(timingPassword)
	if err != nil {
		return nil, oops.Code("HASH_FAILED").Wrap(err)
	}

	return &AccountService{
		store:     store,
		hasher:    hasher,
		tokens:    tokens,
		notifier:  notifier,
		bus:       bus,
		metrics:   m,
		templates: cfg.Templates,
		now:       cfg.Now,
		dummyHash: dummyHash,
	}, nil
}

// Register creates a PendingVerification account and sends the
// verification link. A failed dispatch does not undo the registration.
func (s *AccountService) Register(ctx context.Context, req model.SignupRequest) (profile model.AccountProfile, err error) {
	ctx, finish := s.begin(ctx, "register")
	defer func() { finish(err) }()

	if err := req.Validate(); err != nil {
		return model.AccountProfile{}, err
	}

	email, err := util.NormalizeEmail(req.Email)
	if err != nil {
		return model.AccountProfile{}, err
	}
	username, err := util.NormalizeUsername(req.Username)
	if err != nil {
		return model.AccountProfile{}, err
	}
	fullName, err := util.NormalizeFullName(req.FullName)
	if err != nil {
		return model.AccountProfile{}, err
	}

	taken, err := s.store.ExistsByEmail(ctx, email)
	if err != nil {
		return model.AccountProfile{}, err
	}
	if taken {
		return model.AccountProfile{}, oops.Code("CONFLICT").With("field", "email").Wrap(model.ErrConflict)
	}
	taken, err = s.store.ExistsByUsername(ctx, username)
	if err != nil {
		return model.AccountProfile{}, err
	}
	if taken {
		return model.AccountProfile{}, oops.Code("CONFLICT").With("field", "username").Wrap(model.ErrConflict)
	}

	passwordHash, err := s.hashPassword(req.Password)
	if err != nil {
		return model.AccountProfile{}, err
	}

	verificationToken, _, err := s.tokens.IssueVerification(email)
	if err != nil {
		return model.AccountProfile{}, internal("issue verification token", err)
	}

	now := s.now().UTC()
	account := model.Account{
		ID:                uuid.NewString(),
		FullName:          fullName,
		Username:          username,
		Email:             email,
		ProfilePicture:    optional(req.ProfilePicture),
		PasswordHash:      passwordHash,
		VerificationToken: &verificationToken,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.Create(ctx, account); err != nil {
		return model.AccountProfile{}, err
	}

	s.publish(event.Event{Type: event.TypeAccountRegistered, AccountID: account.ID, Email: email})
	s.dispatch(ctx, s.templates.Verification(email, verificationToken), account.ID)

	return account.Profile(now), nil
}

// VerifyEmail consumes a verification token. The stored token must still
// equal the presented one, so a second presentation fails.
func (s *AccountService) VerifyEmail(ctx context.Context, verificationToken string) (err error) {
	ctx, finish := s.begin(ctx, "verify_email")
	defer func() { finish(err) }()

	claims, err := s.tokens.Verify(verificationToken, token.PurposeVerification)
	if err != nil {
		return invalidToken(ctx, token.KindOf(err).String(), err)
	}

	account, err := s.store.FindByEmail(ctx, claims.Email)
	if err != nil {
		return err
	}

	if account.VerificationToken == nil ||
		subtle.ConstantTimeCompare([]byte(*account.VerificationToken), []byte(strings.TrimSpace(verificationToken))) != 1 {
		return invalidToken(ctx, "not_current", nil)
	}

	err = s.store.MarkVerified(ctx, account.ID, *account.VerificationToken, s.now().UTC())
	if errors.Is(err, model.ErrTokenNotFound) {
		return invalidToken(ctx, "consumed", err)
	}
	if err != nil {
		return err
	}

	s.publish(event.Event{Type: event.TypeAccountVerified, AccountID: account.ID, Email: account.Email})
	return nil
}

// Login answers InvalidCredentials for both an unknown email and a wrong
// password. Unverified is only reported once the password has matched.
func (s *AccountService) Login(ctx context.Context, req model.LoginRequest) (session model.SessionToken, err error) {
	ctx, finish := s.begin(ctx, "login")
	defer func() { finish(err) }()

	if err := req.Validate(); err != nil {
		return model.SessionToken{}, err
	}
	// An email that cannot be normalized was never registered.
	email, normErr := util.NormalizeEmail(req.Email)

	account, err := model.Account{}, model.ErrNotFound
	if normErr == nil {
		account, err = s.store.FindByEmail(ctx, email)
	}
	if errors.Is(err, model.ErrNotFound) {
		_, _ = s.hasher.Verify(req.Password, s.dummyHash)
		s.publish(event.Event{Type: event.TypeAccountLoginFailed, Email: email, Detail: "unknown email"})
		return model.SessionToken{}, oops.Code("INVALID_CREDENTIALS").Wrap(model.ErrInvalidCredentials)
	}
	if err != nil {
		return model.SessionToken{}, err
	}

	matched, err := s.hasher.Verify(req.Password, account.PasswordHash)
	if err != nil {
		return model.SessionToken{}, internal("verify password", err)
	}
	if !matched {
		s.publish(event.Event{Type: event.TypeAccountLoginFailed, AccountID: account.ID, Email: email, Detail: "password mismatch"})
		return model.SessionToken{}, oops.Code("INVALID_CREDENTIALS").Wrap(model.ErrInvalidCredentials)
	}

	if !account.IsVerified {
		return model.SessionToken{}, oops.Code("UNVERIFIED").With("account_id", account.ID).Wrap(model.ErrUnverified)
	}

	signed, expiresAt, err := s.tokens.IssueSession(account.ID, account.Username)
	if err != nil {
		return model.SessionToken{}, internal("issue session token", err)
	}

	s.publish(event.Event{Type: event.TypeAccountLogin, AccountID: account.ID, Email: account.Email})
	return model.SessionToken{Token: signed, ExpiresAt: expiresAt}, nil
}

// RequestPasswordReset stores a fresh reset token with an explicit expiry,
// replacing any earlier one, and sends the reset link.
func (s *AccountService) RequestPasswordReset(ctx context.Context, req model.ResetRequest) (err error) {
	ctx, finish := s.begin(ctx, "request_password_reset")
	defer func() { finish(err) }()

	if err := req.Validate(); err != nil {
		return err
	}

	email, err := util.NormalizeEmail(req.Email)
	if err != nil {
		return err
	}

	account, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	resetToken, _, err := s.tokens.IssueReset(account.Email)
	if err != nil {
		return internal("issue reset token", err)
	}

	now := s.now().UTC()
	expiry := now.Add(s.tokens.ResetTTL())
	if err := s.store.SetResetToken(ctx, account.ID, resetToken, expiry, now); err != nil {
		return err
	}

	s.publish(event.Event{Type: event.TypeResetRequested, AccountID: account.ID, Email: account.Email})
	s.dispatch(ctx, s.templates.PasswordReset(account.Email, resetToken), account.ID)
	return nil
}

// CompletePasswordReset requires both the signed token and the stored
// token/expiry pair to be valid. Nothing is written unless both pass.
func (s *AccountService) CompletePasswordReset(ctx context.Context, req model.CompleteResetRequest) (err error) {
	ctx, finish := s.begin(ctx, "complete_password_reset")
	defer func() { finish(err) }()

	if err := req.Validate(); err != nil {
		return err
	}

	claims, err := s.tokens.Verify(req.Token, token.PurposeReset)
	if err != nil {
		return invalidToken(ctx, token.KindOf(err).String(), err)
	}

	resetToken := strings.TrimSpace(req.Token)
	now := s.now().UTC()

	account, err := s.store.FindByResetToken(ctx, resetToken, now)
	if errors.Is(err, model.ErrTokenNotFound) {
		return invalidToken(ctx, "not_current", err)
	}
	if err != nil {
		return err
	}
	if !strings.EqualFold(account.Email, claims.Email) {
		return invalidToken(ctx, "email_mismatch", nil)
	}

	passwordHash, err := s.hashPassword(req.Password)
	if err != nil {
		return err
	}

	err = s.store.CompleteReset(ctx, account.ID, resetToken, passwordHash, now)
	if errors.Is(err, model.ErrTokenNotFound) {
		return invalidToken(ctx, "consumed", err)
	}
	if err != nil {
		return err
	}

	s.publish(event.Event{Type: event.TypeResetCompleted, AccountID: account.ID, Email: account.Email})
	return nil
}

func (s *AccountService) FetchOwnProfile(ctx context.Context, accountID string) (profile model.AccountProfile, err error) {
	ctx, finish := s.begin(ctx, "fetch_own_profile")
	defer func() { finish(err) }()

	account, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		return model.AccountProfile{}, err
	}
	return account.Profile(s.now().UTC()), nil
}

// SweepExpiredResets clears reset token/expiry pairs whose stored expiry has
// passed. Expired pairs are already unusable; this only tidies the records.
func (s *AccountService) SweepExpiredResets(ctx context.Context) (int64, error) {
	cleared, err := s.store.ClearExpiredResets(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if cleared > 0 {
		slog.InfoContext(ctx, "expired password resets cleared", "count", cleared)
	}
	return cleared, nil
}

// StartResetSweeper runs SweepExpiredResets every interval until ctx is
// cancelled. The returned channel is closed once the loop has stopped.
func (s *AccountService) StartResetSweeper(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SweepExpiredResets(ctx); err != nil && ctx.Err() == nil {
					slog.ErrorContext(ctx, "reset sweep failed", "error", err)
				}
			}
		}
	}()

	return done
}

func (s *AccountService) begin(ctx context.Context, operation string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "account."+operation,
		trace.WithAttributes(attribute.String("account.operation", operation)))

	return ctx, func(err error) {
		outcome := metrics.Outcome(err)
		span.SetAttributes(attribute.String("account.outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()

		s.metrics.ObserveOperation(operation, err, time.Since(start))
		slog.DebugContext(ctx, "account operation finished", "operation", operation, "outcome", outcome)
	}
}

// dispatch hands msg to the notifier. Failures are logged, counted and
// published; they never fail the calling operation.
func (s *AccountService) dispatch(ctx context.Context, msg notify.Message, accountID string) {
	err := s.notifier.Send(ctx, msg)
	if err == nil {
		return
	}

	slog.WarnContext(ctx, "notification dispatch failed",
		"kind", msg.Kind,
		"account_id", accountID,
		"error", err,
	)
	s.metrics.ObserveDispatch(string(msg.Kind), err)
	s.publish(event.Event{
		Type:      event.TypeNotificationFailed,
		AccountID: accountID,
		Email:     msg.To,
		Detail:    string(msg.Kind),
	})
}

func (s *AccountService) publish(e event.Event) {
	if s.bus == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now().UTC()
	}
	s.bus.Publish(e)
}

func (s *AccountService) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	switch {
	case err == nil:
		return hash, nil
	case errors.Is(err, security.ErrEmptyPassword), errors.Is(err, security.ErrPasswordTooLong):
		return "", oops.Code("VALIDATION").With("field", "password").Wrapf(model.ErrValidation, "%s", err.Error())
	default:
		return "", internal("hash password", err)
	}
}

// invalidToken keeps the precise reason in logs only; callers see the
// generic InvalidToken kind.
func invalidToken(ctx context.Context, reason string, cause error) error {
	slog.DebugContext(ctx, "token rejected", "reason", reason)

	builder := oops.Code("INVALID_TOKEN").With("reason", reason)
	if cause == nil {
		return builder.Wrap(model.ErrInvalidToken)
	}
	return builder.Wrap(errors.Join(model.ErrInvalidToken, cause))
}

func internal(operation string, err error) error {
	return oops.Code("INTERNAL").With("operation", operation).Wrap(errors.Join(model.ErrInternal, err))
}

func optional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
