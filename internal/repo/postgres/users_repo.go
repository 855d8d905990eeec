package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/identity/internal/domain/user"
	"github.com/geocoder89/identity/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (u user.User, err error) {
	err = r.observe("users.get_by_email", func() error {
		return scanUser(r.pool.QueryRow(ctx, `
			SELECT id, user_name, email, password_hash, created_at, updated_at
			FROM users
			WHERE email = $1`,
			email,
		), &u)
	})
	return
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (u user.User, err error) {
	err = r.observe("users.get_by_id", func() error {
		return scanUser(r.pool.QueryRow(ctx, `
			SELECT id, user_name, email, password_hash, created_at, updated_at
			FROM users
			WHERE id = $1`,
			id,
		), &u)
	})
	return
}

// Create inserts inside a transaction and calls beforeCommit with the
// assigned id. A non-nil error from beforeCommit rolls the insert back.
func (r *UsersRepo) Create(ctx context.Context, in user.NewUser, beforeCommit func(user.User) error) (u user.User, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	now := time.Now().UTC()

	err = r.observe("users.create.insert", func() error {
		e := tx.QueryRow(ctx, `
			INSERT INTO users (user_name, email, password_hash, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			RETURNING id, user_name, email, password_hash, created_at, updated_at`,
			in.UserName, in.Email, in.PasswordHash, now,
		).Scan(&u.ID, &u.UserName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)

		var pgErr *pgconn.PgError
		if errors.As(e, &pgErr) && pgErr.Code == uniqueViolation {
			return user.ErrEmailTaken
		}
		return e
	})

	if err != nil {
		u = user.User{}
		return
	}

	if beforeCommit != nil {
		if err = beforeCommit(u); err != nil {
			u = user.User{}
			return
		}
	}

	err = r.observe("users.create.commit", func() error {
		return tx.Commit(ctx)
	})

	if err != nil {
		u = user.User{}
	}

	return
}

func (r *UsersRepo) Update(ctx context.Context, id int64, changes user.Changes) (u user.User, err error) {
	err = r.observe("users.update", func() error {
		return scanUser(r.pool.QueryRow(ctx, `
			UPDATE users
			SET user_name = COALESCE($2, user_name),
			    password_hash = COALESCE($3, password_hash),
			    updated_at = $4
			WHERE id = $1
			RETURNING id, user_name, email, password_hash, created_at, updated_at`,
			id, changes.UserName, changes.PasswordHash, time.Now().UTC(),
		), &u)
	})
	return
}

func scanUser(row pgx.Row, u *user.User) error {
	err := row.Scan(
		&u.ID,
		&u.UserName,
		&u.Email,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		*u = user.User{}
		if errors.Is(err, pgx.ErrNoRows) {
			return user.ErrNotFound
		}
		return err
	}
	return nil
}
