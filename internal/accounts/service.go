package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/identity/internal/credentials"
	"github.com/geocoder89/identity/internal/domain/user"
	"github.com/geocoder89/identity/internal/notifications"
	"github.com/geocoder89/identity/internal/security"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/geocoder89/identity/internal/accounts")

type Store interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id int64) (user.User, error)
	Create(ctx context.Context, in user.NewUser, beforeCommit func(user.User) error) (user.User, error)
	Update(ctx context.Context, id int64, changes user.Changes) (user.User, error)
}

type TokenCodec interface {
	Encode(userID int64, now time.Time) (string, error)
	Decode(token string, now time.Time) (int64, error)
	TTL() time.Duration
}

type PasswordVault interface {
	HashPassword(plain string) (string, error)
	CheckPassword(hash, plain string) bool
	NeedsRehash(hash string) bool
	Burn(plain string)
}

type Metrics interface {
	AuthOutcome(op, result string)
	ObservePasswordHash(d time.Duration)
}

// Deps is everything a Service needs. Store, Tokens and Vault are required.
type Deps struct {
	Store    Store
	Tokens   TokenCodec
	Vault    PasswordVault
	Notifier notifications.Notifier
	Metrics  Metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service runs the registration, login and profile flows. It keeps no
// per-request state and is safe for concurrent use.
type Service struct {
	store    Store
	tokens   TokenCodec
	vault    PasswordVault
	notifier notifications.Notifier
	metrics  Metrics
	log      *slog.Logger
	now      func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		store:    d.Store,
		tokens:   d.Tokens,
		vault:    d.Vault,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		log:      d.Logger,
		now:      d.Now,
	}

	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}

	return s
}

type RegisterInput struct {
	UserName string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

// UpdateInput fields are optional; nil leaves the field as it is.
type UpdateInput struct {
	UserName *string
	Password *string
}

type AuthResult struct {
	UserID    int64
	Token     string
	ExpiresAt time.Time
	ExpiresIn time.Duration
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (res AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "accounts.Register")
	defer func() { s.finish(span, "register", err) }()

	if err = validateRegistration(in); err != nil {
		return AuthResult{}, err
	}

	_, err = s.store.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return AuthResult{}, ErrUserExists
	case !errors.Is(err, user.ErrNotFound):
		return AuthResult{}, fmt.Errorf("lookup user by email: %w", err)
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return AuthResult{}, err
	}

	now := s.now()
	var token string

	// the token is issued before commit so a failure leaves no account behind
	created, err := s.store.Create(ctx, user.NewUser{
		UserName:     in.UserName,
		Email:        in.Email,
		PasswordHash: hash,
	}, func(u user.User) error {
		t, e := s.tokens.Encode(u.ID, now)
		if e != nil {
			return fmt.Errorf("%w: %w", ErrTokenIssuance, e)
		}
		token = t
		return nil
	})

	if err != nil {
		switch {
		case errors.Is(err, user.ErrEmailTaken):
			return AuthResult{}, ErrUserExists
		case errors.Is(err, ErrTokenIssuance):
			return AuthResult{}, err
		default:
			return AuthResult{}, fmt.Errorf("create user: %w", err)
		}
	}

	span.SetAttributes(attribute.Int64("user.id", created.ID))
	s.notifyRegistered(ctx, created)

	return AuthResult{
		UserID:    created.ID,
		Token:     token,
		ExpiresAt: now.Add(s.tokens.TTL()),
		ExpiresIn: s.tokens.TTL(),
	}, nil
}

// Login never reveals whether the email exists: unknown email and wrong
// password both return ErrInvalidCredentials after a full bcrypt comparison.
func (s *Service) Login(ctx context.Context, in LoginInput) (res AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "accounts.Login")
	defer func() { s.finish(span, "login", err) }()

	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return AuthResult{}, ErrMissingField
	}

	if !credentials.IsEmail(in.Email) {
		return AuthResult{}, ErrInvalidEmail
	}

	u, err := s.store.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.vault.Burn(in.Password)
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("lookup user by email: %w", err)
	}

	if !s.vault.CheckPassword(u.PasswordHash, in.Password) {
		return AuthResult{}, ErrInvalidCredentials
	}

	if s.vault.NeedsRehash(u.PasswordHash) {
		s.rehash(ctx, u.ID, in.Password)
	}

	now := s.now()

	token, err := s.tokens.Encode(u.ID, now)
	if err != nil {
		return AuthResult{}, fmt.Errorf("%w: %w", ErrTokenIssuance, err)
	}

	return AuthResult{
		UserID:    u.ID,
		Token:     token,
		ExpiresAt: now.Add(s.tokens.TTL()),
		ExpiresIn: s.tokens.TTL(),
	}, nil
}

// Authenticate is the gate in front of every protected operation. It decodes
// the bearer token on each call and re-reads the user from the store.
func (s *Service) Authenticate(ctx context.Context, authorization string) (u user.User, err error) {
	ctx, span := tracer.Start(ctx, "accounts.Authenticate")
	defer func() { s.finish(span, "authenticate", err) }()

	raw, ok := BearerToken(authorization)
	if !ok {
		return user.User{}, ErrMissingToken
	}

	userID, err := s.tokens.Decode(raw, s.now())
	if err != nil {
		s.log.WarnContext(ctx, "token rejected", "reason", err.Error())
		return user.User{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	u, err = s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.log.ErrorContext(ctx, "valid token for missing user", "token_user_id", userID)
			return user.User{}, ErrUnknownUser
		}
		return user.User{}, fmt.Errorf("lookup user by id: %w", err)
	}

	return u, nil
}

// UpdateProfile validates every provided field before anything is hashed or
// written, so a rejected request leaves the stored account untouched.
func (s *Service) UpdateProfile(ctx context.Context, current user.User, in UpdateInput) (u user.User, err error) {
	ctx, span := tracer.Start(ctx, "accounts.UpdateProfile")
	defer func() { s.finish(span, "update_profile", err) }()

	if in.UserName != nil && strings.TrimSpace(*in.UserName) == "" {
		return user.User{}, ErrMissingField
	}

	if in.Password != nil && !credentials.IsPasswordStrong(*in.Password) {
		return user.User{}, ErrWeakPassword
	}

	var changes user.Changes

	if in.UserName != nil {
		name := *in.UserName
		changes.UserName = &name
	}

	if in.Password != nil {
		hash, err := s.hashPassword(*in.Password)
		if err != nil {
			return user.User{}, err
		}
		changes.PasswordHash = &hash
	}

	if changes.Empty() {
		return current, nil
	}

	u, err = s.store.Update(ctx, current.ID, changes)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrUnknownUser
		}
		return user.User{}, fmt.Errorf("update user: %w", err)
	}

	return u, nil
}

func validateRegistration(in RegisterInput) error {
	if strings.TrimSpace(in.UserName) == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return ErrMissingField
	}

	if !credentials.IsPasswordStrong(in.Password) {
		return ErrWeakPassword
	}

	if !credentials.IsEmail(in.Email) {
		return ErrInvalidEmail
	}

	return nil
}

// BearerToken extracts the credential from an "<scheme> <token>" header.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || scheme == "" {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}

	return token, true
}

func (s *Service) hashPassword(plain string) (string, error) {
	start := time.Now()
	hash, err := s.vault.HashPassword(plain)
	s.metrics.ObservePasswordHash(time.Since(start))

	if err != nil {
		if errors.Is(err, security.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// rehash stores the password again at the current cost. Login succeeds even
// if this fails; the next login retries.
func (s *Service) rehash(ctx context.Context, id int64, plain string) {
	hash, err := s.hashPassword(plain)
	if err == nil {
		_, err = s.store.Update(ctx, id, user.Changes{PasswordHash: &hash})
	}
	if err != nil {
		s.log.WarnContext(ctx, "password rehash failed", "user_id", id, "err", err)
	}
}

func (s *Service) notifyRegistered(ctx context.Context, u user.User) {
	if s.notifier == nil {
		return
	}

	err := s.notifier.AccountRegistered(ctx, notifications.AccountRegisteredInput{
		UserID:       u.ID,
		Email:        u.Email,
		UserName:     u.UserName,
		RegisteredAt: u.CreatedAt,
	})
	if err != nil {
		// the account is committed; a lost notification does not undo it
		s.log.WarnContext(ctx, "account registered notification failed", "user_id", u.ID, "err", err)
	}
}

func (s *Service) finish(span trace.Span, op string, err error) {
	result := outcome(err)
	s.metrics.AuthOutcome(op, result)

	if err != nil && result == "error" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("auth.result", result))
	span.End()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsValidation(err):
		return "rejected"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrMissingToken), errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	default:
		return "error"
	}
}

type nopMetrics struct{}

func (nopMetrics) AuthOutcome(string, string)        {}
func (nopMetrics) ObservePasswordHash(time.Duration) {}
