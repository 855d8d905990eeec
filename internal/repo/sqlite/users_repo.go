package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/geocoder89/identity/internal/db"
	"github.com/geocoder89/identity/internal/domain/user"
	"github.com/geocoder89/identity/internal/observability"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// UsersRepo implements the account store over a single SQLite file.
type UsersRepo struct {
	sqlDB *sql.DB
	prom  *observability.Prom
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, prom *observability.Prom) (*UsersRepo, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	dsn := "file:" + cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// one writer at a time; SQLite serializes writes anyway
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := db.MigrateSQLite(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return &UsersRepo{sqlDB: sqlDB, prom: prom}, nil
}

func (r *UsersRepo) Close() error {
	if r == nil || r.sqlDB == nil {
		return nil
	}
	return r.sqlDB.Close()
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.sqlDB.PingContext(ctx)
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (u user.User, err error) {
	err = r.observe("users.get_by_email", func() error {
		return scanUser(r.sqlDB.QueryRowContext(ctx, `
			SELECT id, user_name, email, password_hash, created_at, updated_at
			FROM users
			WHERE email = ?`,
			email,
		), &u)
	})
	return
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (u user.User, err error) {
	err = r.observe("users.get_by_id", func() error {
		return scanUser(r.sqlDB.QueryRowContext(ctx, `
			SELECT id, user_name, email, password_hash, created_at, updated_at
			FROM users
			WHERE id = ?`,
			id,
		), &u)
	})
	return
}

// Create inserts inside a transaction and calls beforeCommit with the
// assigned id. A non-nil error from beforeCommit rolls the insert back.
func (r *UsersRepo) Create(ctx context.Context, in user.NewUser, beforeCommit func(user.User) error) (u user.User, err error) {
	tx, err := r.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()

	err = r.observe("users.create.insert", func() error {
		res, e := tx.ExecContext(ctx, `
			INSERT INTO users (user_name, email, password_hash, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			in.UserName, in.Email, in.PasswordHash, toMillis(now), toMillis(now),
		)
		if e != nil {
			if isUniqueViolation(e) {
				return user.ErrEmailTaken
			}
			return e
		}

		id, e := res.LastInsertId()
		if e != nil {
			return e
		}

		u = user.User{
			ID:           id,
			UserName:     in.UserName,
			Email:        in.Email,
			PasswordHash: in.PasswordHash,
			CreatedAt:    fromMillis(toMillis(now)),
			UpdatedAt:    fromMillis(toMillis(now)),
		}
		return nil
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

	err = r.observe("users.create.commit", tx.Commit)

	if err != nil {
		u = user.User{}
	}

	return
}

func (r *UsersRepo) Update(ctx context.Context, id int64, changes user.Changes) (u user.User, err error) {
	err = r.observe("users.update", func() error {
		res, e := r.sqlDB.ExecContext(ctx, `
			UPDATE users
			SET user_name = COALESCE(?, user_name),
			    password_hash = COALESCE(?, password_hash),
			    updated_at = ?
			WHERE id = ?`,
			nullable(changes.UserName), nullable(changes.PasswordHash), toMillis(time.Now()), id,
		)
		if e != nil {
			return e
		}

		n, e := res.RowsAffected()
		if e != nil {
			return e
		}
		if n == 0 {
			return user.ErrNotFound
		}
		return nil
	})

	if err != nil {
		return
	}

	return r.GetByID(ctx, id)
}

// Count reports the number of stored users.
func (r *UsersRepo) Count(ctx context.Context) (n int, err error) {
	err = r.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func scanUser(row *sql.Row, u *user.User) error {
	var createdAt, updatedAt int64

	err := row.Scan(
		&u.ID,
		&u.UserName,
		&u.Email,
		&u.PasswordHash,
		&createdAt,
		&updatedAt,
	)

	if err != nil {
		*u = user.User{}
		if errors.Is(err, sql.ErrNoRows) {
			return user.ErrNotFound
		}
		return err
	}

	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	// primary result code only when extended codes are off
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
