package notifications

import (
	"context"
	"time"
)

// AccountRegisteredInput describes a freshly committed account. It never
// carries the password or the issued token.
type AccountRegisteredInput struct {
	UserID       int64
	Email        string
	UserName     string
	RegisteredAt time.Time
}

type Notifier interface {
	AccountRegistered(ctx context.Context, input AccountRegisteredInput) error
}
