package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/AlfredBerg/rod-route-tracker/internal/js"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/rod/lib/utils"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type LaunchOptions struct {
	// Path to the chromium compatible binary to start
	Bin    string
	Width  int
	Height int
	// Show the browser window instead of running headless, only useful for debugging
	Show bool
}

// Session is one launched browser process with a single page. It is owned by one
// caller and must be released with Close.
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	log      *zap.Logger

	closed bool
}

// LookPath returns the system browser rod would use when no binary is given.
func LookPath() string {
	p, has := launcher.LookPath()
	if !has {
		return ""
	}
	return p
}

func Launch(ctx context.Context, opts LaunchOptions, log *zap.Logger) (*Session, error) {
	l := launcher.New().
		Context(ctx).
		Bin(opts.Bin).
		Headless(!opts.Show).
		Leakless(true).
		Set("window-size", fmt.Sprintf("%d,%d", opts.Width, opts.Height))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed launching browser %s: %w", opts.Bin, err)
	}
	log.Debug("browser launched", zap.String("bin", opts.Bin), zap.Int("pid", l.PID()))

	s := &Session{launcher: l, log: log}

	s.browser = rod.New().ControlURL(controlURL)
	if err := s.browser.Connect(); err != nil {
		s.browser = nil
		return nil, multierr.Append(fmt.Errorf("failed connecting to browser: %w", err), s.Close())
	}

	//Don't download files in the browser, e.g. pdf files
	err = proto.BrowserSetDownloadBehavior{
		Behavior:         proto.BrowserSetDownloadBehaviorBehaviorDeny,
		BrowserContextID: s.browser.BrowserContextID,
	}.Call(s.browser)
	if err != nil {
		log.Warn("failed denying downloads", zap.Error(err))
	}

	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("failed opening page: %w", err), s.Close())
	}
	s.page = page

	//Avoid alerts blocking the page
	go page.EachEvent(func(e *proto.PageJavascriptDialogOpening) {
		log.Debug("dismissing javascript dialog", zap.String("type", string(e.Type)), zap.String("message", e.Message))
		err := proto.PageHandleJavaScriptDialog{Accept: false, PromptText: ""}.Call(page)
		if err != nil {
			log.Warn("failed dismissing javascript dialog", zap.Error(err))
		}
	})()

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Width,
		Height:            opts.Height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("failed setting viewport %dx%d: %w", opts.Width, opts.Height, err), s.Close())
	}

	return s, nil
}

// Navigate loads url and waits for the document to be parsed, both within timeout.
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p := s.page.Context(ctx).Timeout(timeout)
	defer p.CancelTimeout()

	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("could not navigate to %s: %w", url, err)
	}
	if err := p.Wait(rod.Eval(js.PAGE_READY)); err != nil {
		return fmt.Errorf("page %s never became ready: %w", url, err)
	}
	return nil
}

// ElementText polls for the first element matching selector for at most timeout and
// returns its visible text. A timeout is reported as context.DeadlineExceeded.
func (s *Session) ElementText(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	p := s.page.Context(ctx).Timeout(timeout)
	defer p.CancelTimeout()

	el, err := p.Element(selector)
	if err != nil {
		return "", fmt.Errorf("waiting for element %s: %w", selector, err)
	}

	res, err := el.Eval(js.ROUTE_TEXT)
	if err != nil {
		return "", fmt.Errorf("reading text of element %s: %w", selector, err)
	}
	return res.Value.Str(), nil
}

// Screenshot saves a png of the current viewport to path, creating parent directories.
func (s *Session) Screenshot(ctx context.Context, path string) error {
	img, err := s.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return fmt.Errorf("failed capturing screenshot: %w", err)
	}
	if err := utils.OutputFile(path, img); err != nil {
		return fmt.Errorf("failed writing screenshot %s: %w", path, err)
	}
	return nil
}

// Close tears the session down: page, devtools connection and finally the process
// itself. Calling it more than once is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.page != nil {
		err = multierr.Append(err, s.page.Close())
	}
	if s.browser != nil {
		err = multierr.Append(err, s.browser.Close())
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
	if err != nil {
		s.log.Warn("browser teardown reported errors", zap.Error(err))
	}
	return err
}
