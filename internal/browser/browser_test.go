package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const routePage = `<html><body>
<div class="route-view_driving__route-title-text">
  1 hour   20 min, 45 km
</div>
</body></html>`

const lateRoutePage = `<html><body><script>
setTimeout(() => {
  var d = document.createElement("div");
  d.className = "late";
  d.innerText = "12 min, 3 km";
  document.body.appendChild(d);
}, 300);
</script></body></html>`

const alertRoutePage = `<html><body>
<script>alert("route is being recalculated");</script>
<div class="after-alert">48 min, 31 km</div>
</body></html>`

// testBrowser prefers ROD_BROWSER_BIN, then the system browser. With ROD_BROWSER_DOWNLOAD
// set a browser is fetched into rod's cache so CI machines without one still run the tests.
func testBrowser(t *testing.T) string {
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		return bin
	}
	if bin := LookPath(); bin != "" {
		return bin
	}
	if os.Getenv("ROD_BROWSER_DOWNLOAD") == "" {
		t.Skip("no browser found, set ROD_BROWSER_BIN or ROD_BROWSER_DOWNLOAD=1")
	}
	bin, err := launcher.NewBrowser().Get()
	require.NoError(t, err)
	return bin
}

func launch(t *testing.T) *Session {
	bin := testBrowser(t)
	s, err := Launch(context.Background(), LaunchOptions{Bin: bin, Width: 800, Height: 600}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/late":
			fmt.Fprint(w, lateRoutePage)
		default:
			fmt.Fprint(w, routePage)
		}
	}))
	defer srv.Close()

	s := launch(t)
	ctx := context.Background()

	require.NoError(t, s.Navigate(ctx, srv.URL, 5*time.Second))
	text, err := s.ElementText(ctx, ".route-view_driving__route-title-text", 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, "1 hour 20 min, 45 km", text)

	shot := filepath.Join(t.TempDir(), "shots", "route.png")
	require.NoError(t, s.Screenshot(ctx, shot))
	info, err := os.Stat(shot)
	require.NoError(t, err)
	require.NotZero(t, info.Size())

	require.NoError(t, s.Navigate(ctx, srv.URL+"/late", 5*time.Second))
	text, err = s.ElementText(ctx, ".late", 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, "12 min, 3 km", text)

	_, err = s.ElementText(ctx, ".never-there", 500*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestSessionDismissesDialogs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, alertRoutePage)
	}))
	defer srv.Close()

	s := launch(t)
	ctx := context.Background()

	require.NoError(t, s.Navigate(ctx, srv.URL, 5*time.Second))
	text, err := s.ElementText(ctx, ".after-alert", 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, "48 min, 31 km", text)
}

func TestSessionNavigateTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	s := launch(t)

	start := time.Now()
	err := s.Navigate(context.Background(), srv.URL, 500*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 5*time.Second)
}
