package track

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/AlfredBerg/rod-route-tracker/internal/browser"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrRouteTimeout = errors.New("route element did not appear in time")

// session is the part of the browser the runner drives, browser.Session in production
type session interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	ElementText(ctx context.Context, selector string, timeout time.Duration) (string, error)
	Screenshot(ctx context.Context, path string) error
	Close() error
}

// Runner owns one browser session for its whole life and records the route shown at
// Config.URL each time Track is called.
type Runner struct {
	cfg      Config
	session  session
	handlers []OutputHandler
	log      *zap.Logger

	now func() time.Time
}

// New validates cfg and launches the browser. Nothing is started when the
// configuration is invalid. The returned Runner must be closed.
func New(ctx context.Context, cfg Config, log *zap.Logger, handlers ...OutputHandler) (*Runner, error) {
	cfg = cfg.WithDefaults()
	if cfg.Browser == "" {
		cfg.Browser = browser.LookPath()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s, err := browser.Launch(ctx, browser.LaunchOptions{
		Bin:    cfg.Browser,
		Width:  cfg.Resolution[0],
		Height: cfg.Resolution[1],
		Show:   cfg.Show,
	}, log)
	if err != nil {
		return nil, err
	}

	return newRunner(cfg, s, log, handlers...), nil
}

func newRunner(cfg Config, s session, log *zap.Logger, handlers ...OutputHandler) *Runner {
	return &Runner{
		cfg:      cfg,
		session:  s,
		handlers: handlers,
		log:      log.With(zap.String("url", cfg.URL)),
		now:      time.Now,
	}
}

func (r *Runner) Track(ctx context.Context) (Measurement, error) {
	m := Measurement{RunID: uuid.NewString(), URL: r.cfg.URL}
	log := r.log.With(zap.String("run_id", m.RunID))

	if err := r.session.Navigate(ctx, r.cfg.URL, r.cfg.NavigateTimeout); err != nil {
		return m, err
	}

	text, err := r.session.ElementText(ctx, r.cfg.selector(), r.cfg.Timeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return m, fmt.Errorf("%w: class %s after %s: %w", ErrRouteTimeout, r.cfg.RouteClass, r.cfg.Timeout, err)
		}
		return m, err
	}
	log.Debug("route element found", zap.String("text", text))

	m.CapturedAt = r.now()
	m.Screenshot = filepath.Join(r.cfg.ScreenPath, ScreenshotName(r.cfg.ScreenPattern, m.CapturedAt))
	if err := r.session.Screenshot(ctx, m.Screenshot); err != nil {
		return m, err
	}

	m.Duration, m.Distance, err = ParseRouteText(text)
	if err != nil {
		return m, err
	}

	for _, h := range r.handlers {
		if err := h.HandleMeasurement(m); err != nil {
			return m, fmt.Errorf("failed storing measurement: %w", err)
		}
	}

	log.Info("route tracked",
		zap.String("duration", m.Duration),
		zap.String("distance", m.Distance),
		zap.String("screenshot", m.Screenshot))
	return m, nil
}

// Close releases the browser. It is safe to call more than once.
func (r *Runner) Close() error {
	if r.session == nil {
		return nil
	}
	err := r.session.Close()
	r.session = nil
	return err
}
