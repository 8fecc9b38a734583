package track

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout renders capture times in both the output file and screenshot names.
const TimestampLayout = "2006-01-02 15:04:05.000000"

var ErrMalformedRoute = errors.New("malformed route text")

// Measurement is one observation of the route. It is written once and never updated.
type Measurement struct {
	RunID      string
	CapturedAt time.Time
	URL        string
	Duration   string
	Distance   string
	Screenshot string
}

// OutputHandler persists measurements. Handlers are called in order after the
// screenshot has been saved.
type OutputHandler interface {
	HandleMeasurement(m Measurement) error
}

func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

func ScreenshotName(pattern string, t time.Time) string {
	return strings.ReplaceAll(pattern, TimestampPlaceholder, FormatTimestamp(t))
}

// ParseRouteText splits text like "1 hour 20 min, 45 km" into its duration and
// distance. Segments after the second one are ignored.
func ParseRouteText(text string) (duration, distance string, err error) {
	parts := strings.Split(text, ",")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("%w: expected \"<duration>, <distance>\", got %q", ErrMalformedRoute, text)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}
