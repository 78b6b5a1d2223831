package heatmap

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seentics/seentics-go/internal/core"
	"github.com/seentics/seentics-go/internal/page"
)

type recorder struct {
	mu     sync.Mutex
	bodies [][]byte
	status int
}

func (r *recorder) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.bodies = append(r.bodies, body)
		status := r.status
		r.mu.Unlock()
		if status == 0 {
			status = http.StatusAccepted
		}
		w.WriteHeader(status)
	})
}

func (r *recorder) points(t *testing.T) []Point {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	var points []Point
	for _, body := range r.bodies {
		var payload recordPayload
		require.NoError(t, json.Unmarshal(body, &payload))
		points = append(points, payload.Points...)
	}
	return points
}

func alwaysSample(cfg *Config) {
	cfg.SampleInterval = 0
	cfg.SampleRate = 1
	cfg.MinDistance = 0
}

func setup(t *testing.T, cfg Config, opts ...page.Option) (*Tracker, *page.Window, *recorder) {
	t.Helper()
	rec := &recorder{}
	server := httptest.NewServer(rec.handler())
	t.Cleanup(server.Close)

	win := page.NewWindow(page.Location{Hostname: "shop.example.com", Path: "/"}, opts...)
	sched := core.NewScheduler(time.Millisecond, 2*time.Millisecond)
	t.Cleanup(sched.Stop)
	queue := core.NewQueue(time.Hour, 0, func([]core.Event) error { return nil })
	rt := core.NewRuntime("site_1", win, core.NewBus(), core.NewMemoryStore(), core.NewMemoryStore(),
		core.NewAPIClient(server.URL), sched, queue)

	tracker := New(rt, cfg)
	tracker.randFn = func() float64 { return 0 } // deterministic: always below the rate
	tracker.Init()
	t.Cleanup(tracker.Stop)
	rt.SignalReady()
	return tracker, win, rec
}

func TestNormalizeYAlwaysInBounds(t *testing.T) {
	for _, y := range []int{-500, 0, 1, 2399, 2400, 10000} {
		n := normalizeY(y, 2400)
		assert.GreaterOrEqual(t, n, 0, "y=%d", y)
		assert.LessOrEqual(t, n, 1000, "y=%d", y)
	}
	assert.Zero(t, normalizeY(100, 0), "degenerate document height")
}

func TestNormalizeXMobileProportional(t *testing.T) {
	assert.Equal(t, 0, normalizeX(0, 400, "mobile"))
	assert.Equal(t, 500, normalizeX(200, 400, "mobile"))
	assert.Equal(t, 1000, normalizeX(400, 400, "mobile"))
}

func TestNormalizeXDesktopCentered(t *testing.T) {
	// Viewport matches the canonical width: plain proportional mapping.
	assert.Equal(t, 500, normalizeX(720, canonicalContentWidth, "desktop"))

	// Wider viewport: content is centered, so the content edges map to 0
	// and 1000 while far margins fall outside the range. The overshoot is
	// preserved, not clamped.
	wide := canonicalContentWidth + 400
	assert.Equal(t, 0, normalizeX(200, wide, "desktop"))
	assert.Equal(t, 1000, normalizeX(wide-200, wide, "desktop"))
	assert.Less(t, normalizeX(0, wide, "desktop"), 0)
	assert.Greater(t, normalizeX(wide, wide, "desktop"), 1000)
}

func TestMoveSamplingTripleFilter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleInterval = time.Hour // time filter blocks everything after the first
	cfg.SampleRate = 1
	cfg.MinDistance = 0
	tracker, win, _ := setup(t, cfg)

	win.DispatchMouseMove(page.MouseMove{X: 100, Y: 100})
	win.DispatchMouseMove(page.MouseMove{X: 300, Y: 300})
	assert.Equal(t, 2, tracker.pending(), "pageview plus a single sampled move")

	// Distance filter: identical position is suppressed even when time allows.
	tracker.mu.Lock()
	tracker.cfg.SampleInterval = 0
	tracker.cfg.SampleRate = 0.5
	tracker.cfg.MinDistance = 10
	tracker.mu.Unlock()
	win.DispatchMouseMove(page.MouseMove{X: 100, Y: 100})
	win.DispatchMouseMove(page.MouseMove{X: 101, Y: 100})
	assert.Equal(t, 3, tracker.pending(), "first move passes, 1px jitter is suppressed")

	// Probability filter.
	tracker.randFn = func() float64 { return 0.99 }
	win.DispatchMouseMove(page.MouseMove{X: 500, Y: 500})
	assert.Equal(t, 3, tracker.pending())
}

func TestClickRecordedWithSelector(t *testing.T) {
	cfg := DefaultConfig()
	alwaysSample(&cfg)
	tracker, win, _ := setup(t, cfg)

	win.DispatchClick(page.Click{X: 10, Y: 20, Target: page.Element{Selector: "button#buy"}})

	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	require.Len(t, tracker.buffer, 2)
	assert.Equal(t, "click", tracker.buffer[1].Type)
	assert.Equal(t, "button#buy", tracker.buffer[1].Selector)
}

func TestBufferThresholdFlushes(t *testing.T) {
	cfg := DefaultConfig()
	alwaysSample(&cfg)
	cfg.MaxBuffer = 3
	_, win, rec := setup(t, cfg)

	win.DispatchClick(page.Click{X: 1, Y: 1})
	win.DispatchClick(page.Click{X: 2, Y: 2})

	require.Eventually(t, func() bool {
		return len(rec.points(t)) == 3
	}, time.Second, 5*time.Millisecond)
}

func TestHiddenPageFlushes(t *testing.T) {
	cfg := DefaultConfig()
	alwaysSample(&cfg)
	tracker, win, rec := setup(t, cfg)

	win.DispatchClick(page.Click{X: 1, Y: 1})
	win.SetVisible(false)

	assert.Zero(t, tracker.pending())
	assert.NotEmpty(t, rec.points(t))
}

func TestDeliveryFailureDropsPoints(t *testing.T) {
	cfg := DefaultConfig()
	alwaysSample(&cfg)
	tracker, win, rec := setup(t, cfg)
	rec.mu.Lock()
	rec.status = http.StatusInternalServerError
	rec.mu.Unlock()

	win.DispatchClick(page.Click{X: 1, Y: 1})
	tracker.Flush()

	assert.Zero(t, tracker.pending(), "heatmap data is lossy: no retry on failure")
}

func TestURLCapExcludesNewURLs(t *testing.T) {
	cfg := DefaultConfig()
	alwaysSample(&cfg)
	cfg.MaxHeatmaps = 1
	tracker, win, _ := setup(t, cfg)

	require.Equal(t, 1, tracker.pending(), "initial pageview recorded")

	// Navigating to a second URL exceeds the cap: nothing records there.
	win.PushState("/other", "Other")
	win.DispatchClick(page.Click{X: 5, Y: 5})
	assert.Equal(t, 1, tracker.pending())

	// The original URL keeps recording.
	win.PushState("/", "Home")
	win.DispatchClick(page.Click{X: 5, Y: 5})
	assert.Equal(t, 2, tracker.pending())
}

func TestEmbeddedViewerAnswersDimensionQuery(t *testing.T) {
	cfg := DefaultConfig()
	_, win, _ := setup(t, cfg, page.WithEmbedded(), page.WithDocumentSize(1280, 4200))

	win.ReceiveMessage(page.Message{Type: msgGetDimensions})

	msgs := win.ParentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, msgDimensions, msgs[0].Type)
	assert.Equal(t, 4200, msgs[0].Data["height"])
	assert.Equal(t, 1280, msgs[0].Data["width"])
}

func TestEmbeddedViewerAcceptsScrollCommand(t *testing.T) {
	cfg := DefaultConfig()
	_, win, _ := setup(t, cfg, page.WithEmbedded())

	win.ReceiveMessage(page.Message{Type: msgSetScroll, Data: map[string]any{"left": float64(0), "top": float64(900)}})

	top, _ := win.ScrollPosition()
	assert.Equal(t, 900, top)
}

func TestEmbeddedViewerDoesNotRecord(t *testing.T) {
	cfg := DefaultConfig()
	alwaysSample(&cfg)
	tracker, win, _ := setup(t, cfg, page.WithEmbedded())

	win.DispatchClick(page.Click{X: 1, Y: 1})
	assert.Zero(t, tracker.pending())
}

func TestRecorderRelaysScrollToParent(t *testing.T) {
	cfg := DefaultConfig()
	_, win, _ := setup(t, cfg)

	win.DispatchScroll(page.Scroll{Top: 640, Left: 0})

	msgs := win.ParentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, msgScroll, msgs[0].Type)
	assert.Equal(t, 640, msgs[0].Data["scrollTop"])
}
