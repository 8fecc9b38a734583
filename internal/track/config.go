package track

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	DefaultRouteClass    = "route-view_driving__route-title-text"
	DefaultScreenPattern = "%s.png"
	DefaultCSVPath       = "statistic.csv"
	DefaultTimeout       = 5 * time.Second
	// Loading the page itself is bounded separately from the route element wait
	DefaultNavigateTimeout = 30 * time.Second

	// TimestampPlaceholder is replaced by the capture time in ScreenPattern
	TimestampPlaceholder = "%s"
)

var DefaultResolution = []int{1920, 1080}

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	URL string
	// Browser binary to launch, it must exist on disk
	Browser string
	// Viewport as width, height
	Resolution []int
	// Class name of the DOM element holding "<duration>, <distance>"
	RouteClass    string
	ScreenPath    string
	ScreenPattern string
	CSVPath       string
	// Optional sqlite database receiving every measurement as well, empty disables it
	SqlitePath string
	// The maximum amount of time to wait for the route element to appear
	Timeout time.Duration
	// The maximum amount of time to load the page before the route element is looked for
	NavigateTimeout time.Duration
	// Show the browser window, only for debugging
	Show bool
}

// WithDefaults returns a copy of c where every unset field except URL and Browser is
// filled in. Browser is left alone so a caller can decide how to look it up.
func (c Config) WithDefaults() Config {
	if len(c.Resolution) == 0 {
		c.Resolution = append([]int(nil), DefaultResolution...)
	}
	if c.RouteClass == "" {
		c.RouteClass = DefaultRouteClass
	}
	if c.ScreenPath == "" {
		c.ScreenPath = "."
	}
	if c.ScreenPattern == "" {
		c.ScreenPattern = DefaultScreenPattern
	}
	if c.CSVPath == "" {
		c.CSVPath = DefaultCSVPath
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.NavigateTimeout == 0 {
		c.NavigateTimeout = DefaultNavigateTimeout
	}
	return c
}

func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidConfig)
	}

	if c.Browser == "" {
		return fmt.Errorf("%w: browser binary not set and none found on the system", ErrInvalidConfig)
	}
	info, err := os.Stat(c.Browser)
	if err != nil {
		return fmt.Errorf("%w: browser binary %s not found: %s", ErrInvalidConfig, c.Browser, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: browser binary %s is a directory", ErrInvalidConfig, c.Browser)
	}

	if len(c.Resolution) != 2 {
		return fmt.Errorf("%w: resolution must be width,height, got %v", ErrInvalidConfig, c.Resolution)
	}
	if c.Resolution[0] <= 0 || c.Resolution[1] <= 0 {
		return fmt.Errorf("%w: resolution must be positive, got %v", ErrInvalidConfig, c.Resolution)
	}

	if c.RouteClass == "" || strings.ContainsAny(c.RouteClass, " \t\n") {
		return fmt.Errorf("%w: route class %q must be a single class name", ErrInvalidConfig, c.RouteClass)
	}

	if !strings.Contains(c.ScreenPattern, TimestampPlaceholder) {
		return fmt.Errorf("%w: screenshot pattern %q does not contain %s", ErrInvalidConfig, c.ScreenPattern, TimestampPlaceholder)
	}

	if c.CSVPath == "" {
		return fmt.Errorf("%w: output file path is empty", ErrInvalidConfig)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfig, c.Timeout)
	}
	if c.NavigateTimeout <= 0 {
		return fmt.Errorf("%w: navigate timeout must be positive, got %s", ErrInvalidConfig, c.NavigateTimeout)
	}
	return nil
}

func (c Config) selector() string {
	return "." + c.RouteClass
}
