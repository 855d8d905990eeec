package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/identity/internal/domain/user"
)

// UsersRepo keeps users in process memory. The single mutex makes the
// duplicate check and insert one step.
type UsersRepo struct {
	mu      sync.RWMutex
	nextID  int64
	items   map[int64]user.User
	byEmail map[string]int64
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items:   make(map[int64]user.User),
		byEmail: make(map[string]int64),
	}
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return r.items[id], nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

// Create inserts the user and runs beforeCommit with the assigned id while
// still holding the lock; an error from it discards the insert.
func (r *UsersRepo) Create(ctx context.Context, in user.NewUser, beforeCommit func(user.User) error) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[in.Email]; exists {
		return user.User{}, user.ErrEmailTaken
	}

	now := time.Now().UTC()
	u := user.User{
		ID:           r.nextID + 1,
		UserName:     in.UserName,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if beforeCommit != nil {
		if err := beforeCommit(u); err != nil {
			return user.User{}, err
		}
	}

	r.nextID = u.ID
	r.items[u.ID] = u
	r.byEmail[u.Email] = u.ID

	return u, nil
}

func (r *UsersRepo) Update(ctx context.Context, id int64, changes user.Changes) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	u = changes.Apply(u, time.Now().UTC())
	r.items[id] = u

	return u, nil
}

// Len reports the number of stored users.
func (r *UsersRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
