package track

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Session mirrors the unexported session interface for tests in track_test
type Session interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	ElementText(ctx context.Context, selector string, timeout time.Duration) (string, error)
	Screenshot(ctx context.Context, path string) error
	Close() error
}

func NewRunnerWithSession(cfg Config, s Session, now func() time.Time, handlers ...OutputHandler) *Runner {
	r := newRunner(cfg.WithDefaults(), s, zap.NewNop(), handlers...)
	r.now = now
	return r
}
