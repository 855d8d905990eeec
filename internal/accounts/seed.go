package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/identity/internal/domain/user"
)

// EnsureAccount creates the account when no user holds the email yet. It
// applies the same validation as Register but issues no token and sends no
// notification. Existing accounts are left untouched.
func (s *Service) EnsureAccount(ctx context.Context, in RegisterInput) (created bool, err error) {
	if in.Email == "" || in.Password == "" {
		return false, nil
	}

	if err := validateRegistration(in); err != nil {
		return false, err
	}

	_, err = s.store.GetByEmail(ctx, in.Email)
	if err == nil {
		return false, nil
	}

	if !errors.Is(err, user.ErrNotFound) {
		return false, fmt.Errorf("lookup seed user: %w", err)
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return false, err
	}

	u, err := s.store.Create(ctx, user.NewUser{
		UserName:     in.UserName,
		Email:        in.Email,
		PasswordHash: hash,
	}, nil)

	if errors.Is(err, user.ErrEmailTaken) {
		// lost a race with another instance seeding the same account
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("create seed user: %w", err)
	}

	s.log.InfoContext(ctx, "seed account created", "user_id", u.ID, "created_at", u.CreatedAt.Format(time.RFC3339))
	return true, nil
}
