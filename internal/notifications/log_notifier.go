package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier writes account events to the structured log. It is the default
// when no broker is configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) AccountRegistered(ctx context.Context, in AccountRegisteredInput) error {
	n.log.InfoContext(ctx, "notification.account_registered",
		"user_id", in.UserID,
		"email", in.Email,
		"user_name", in.UserName,
	)
	return nil
}
