package storage

import (
	"context"
	"errors"
	"strings"

	logx "pubcast/pkg/logx"
)

// Store is the persistence API used by the producer and the HTTP surface.
type Store interface {
	AppendPost(ctx context.Context, e PostEntry) error
	// RecentPosts returns up to n entries, newest first.
	RecentPosts(ctx context.Context, n int) ([]PostEntry, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
