// Package storetest holds behaviour every account store must share.
package storetest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/geocoder89/identity/internal/domain/user"
)

type Store interface {
	Ping(ctx context.Context) error
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id int64) (user.User, error)
	Create(ctx context.Context, in user.NewUser, beforeCommit func(user.User) error) (user.User, error)
	Update(ctx context.Context, id int64, changes user.Changes) (user.User, error)
}

// Run exercises store; newStore must return an empty store each call.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("create_and_lookup", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		created, err := s.Create(ctx, user.NewUser{UserName: "alice", Email: "a@x.com", PasswordHash: "hash-a"}, nil)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if created.ID == 0 {
			t.Fatalf("store must assign an id")
		}

		byEmail, err := s.GetByEmail(ctx, "a@x.com")
		if err != nil {
			t.Fatalf("GetByEmail: %v", err)
		}
		byID, err := s.GetByID(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}

		for _, got := range []user.User{byEmail, byID} {
			if got.ID != created.ID || got.UserName != "alice" || got.PasswordHash != "hash-a" {
				t.Fatalf("unexpected user %+v", got)
			}
		}
	})

	t.Run("missing_user", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, err := s.GetByEmail(ctx, "nobody@x.com"); !errors.Is(err, user.ErrNotFound) {
			t.Fatalf("GetByEmail: expected ErrNotFound, got %v", err)
		}
		if _, err := s.GetByID(ctx, 12345); !errors.Is(err, user.ErrNotFound) {
			t.Fatalf("GetByID: expected ErrNotFound, got %v", err)
		}
		name := "x"
		if _, err := s.Update(ctx, 12345, user.Changes{UserName: &name}); !errors.Is(err, user.ErrNotFound) {
			t.Fatalf("Update: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("duplicate_email", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first, err := s.Create(ctx, user.NewUser{UserName: "alice", Email: "a@x.com", PasswordHash: "h1"}, nil)
		if err != nil {
			t.Fatalf("first create: %v", err)
		}

		_, err = s.Create(ctx, user.NewUser{UserName: "mallory", Email: "a@x.com", PasswordHash: "h2"}, nil)
		if !errors.Is(err, user.ErrEmailTaken) {
			t.Fatalf("expected ErrEmailTaken, got %v", err)
		}

		got, err := s.GetByEmail(ctx, "a@x.com")
		if err != nil || got.ID != first.ID || got.PasswordHash != "h1" {
			t.Fatalf("original row must be untouched, got %+v err=%v", got, err)
		}
	})

	t.Run("before_commit_failure_rolls_back", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		boom := errors.New("token issuance failed")

		var seen int64
		_, err := s.Create(ctx, user.NewUser{UserName: "alice", Email: "a@x.com", PasswordHash: "h"}, func(u user.User) error {
			seen = u.ID
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected hook error, got %v", err)
		}
		if seen == 0 {
			t.Fatalf("hook must see the assigned id")
		}

		if _, err := s.GetByEmail(ctx, "a@x.com"); !errors.Is(err, user.ErrNotFound) {
			t.Fatalf("rolled back user must not exist, got %v", err)
		}

		if _, err := s.Create(ctx, user.NewUser{UserName: "alice", Email: "a@x.com", PasswordHash: "h"}, nil); err != nil {
			t.Fatalf("email must be free after rollback: %v", err)
		}
	})

	t.Run("update_partial", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		u, err := s.Create(ctx, user.NewUser{UserName: "alice", Email: "a@x.com", PasswordHash: "old"}, nil)
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		name := "alice2"
		got, err := s.Update(ctx, u.ID, user.Changes{UserName: &name})
		if err != nil {
			t.Fatalf("update name: %v", err)
		}
		if got.UserName != "alice2" || got.PasswordHash != "old" || got.Email != "a@x.com" {
			t.Fatalf("unexpected after name update: %+v", got)
		}

		hash := "new"
		got, err = s.Update(ctx, u.ID, user.Changes{PasswordHash: &hash})
		if err != nil {
			t.Fatalf("update hash: %v", err)
		}
		if got.UserName != "alice2" || got.PasswordHash != "new" {
			t.Fatalf("unexpected after hash update: %+v", got)
		}
	})

	t.Run("concurrent_same_email", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var ok, taken int32
		var wg sync.WaitGroup

		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Create(ctx, user.NewUser{UserName: "racer", Email: "race@x.com", PasswordHash: "h"}, nil)
				switch {
				case err == nil:
					atomic.AddInt32(&ok, 1)
				case errors.Is(err, user.ErrEmailTaken):
					atomic.AddInt32(&taken, 1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if ok != 1 || taken != 7 {
			t.Fatalf("expected exactly one success and 7 conflicts, got %d/%d", ok, taken)
		}
	})

	t.Run("longest_accepted_fields", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		// 254 is the longest email the API binds; 64 the longest user name
		email := strings.Repeat("a", 64) + "@" + strings.Repeat("b", 185) + ".com"
		name := strings.Repeat("n", 64)
		if len(email) != 254 {
			t.Fatalf("fixture email has %d chars", len(email))
		}

		created, err := s.Create(ctx, user.NewUser{UserName: name, Email: email, PasswordHash: "hash-long"}, nil)
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		got, err := s.GetByEmail(ctx, email)
		if err != nil {
			t.Fatalf("GetByEmail: %v", err)
		}
		if got.ID != created.ID || got.Email != email || got.UserName != name {
			t.Fatalf("unexpected user %+v", got)
		}
	})
}
