package heatmap

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/seentics/seentics-go/internal/core"
	"github.com/seentics/seentics-go/internal/logging"
	"github.com/seentics/seentics-go/internal/page"
)

var nowFunc = time.Now

const recordPath = "/api/v1/heatmaps/record"

// Config bounds the sampling and delivery behavior.
type Config struct {
	FlushInterval  time.Duration
	MaxBuffer      int           // size threshold that forces a flush
	SampleInterval time.Duration // minimum time between move samples
	SampleRate     float64       // probability a qualifying move is kept
	MinDistance    int           // minimum normalized manhattan distance between samples
	MaxHeatmaps    int           // site-level cap on distinct recorded URLs
}

// DefaultConfig returns the shipping defaults.
func DefaultConfig() Config {
	return Config{
		FlushInterval:  15 * time.Second,
		MaxBuffer:      50,
		SampleInterval: 50 * time.Millisecond,
		SampleRate:     0.1,
		MinDistance:    10,
		MaxHeatmaps:    20,
	}
}

type recordPayload struct {
	WebsiteID string  `json:"website_id"`
	Points    []Point `json:"points"`
}

// Tracker records heatmap points in one of two modes, chosen once at init:
// embedded windows act as the dashboard viewer's remote end (answer
// dimension queries, accept scroll commands), top-level windows record and
// relay their own scroll position outward.
type Tracker struct {
	rt  *core.Runtime
	log *slog.Logger
	cfg Config

	mu          sync.Mutex
	initialized bool
	buffer      []Point
	trackedURLs map[string]bool
	lastSample  time.Time
	lastX       int
	lastY       int
	randFn      func() float64
	stopChan    chan struct{}
	started     bool
}

// New builds a heatmap tracker bound to the shared runtime.
func New(rt *core.Runtime, cfg Config) *Tracker {
	if cfg.FlushInterval <= 0 {
		cfg = DefaultConfig()
	}
	return &Tracker{
		rt:          rt,
		log:         logging.With("component", "heatmap"),
		cfg:         cfg,
		trackedURLs: make(map[string]bool),
		randFn:      rand.Float64,
		stopChan:    make(chan struct{}),
	}
}

// Init arms the tracker once the core is ready. Idempotent.
func (t *Tracker) Init() {
	t.mu.Lock()
	if t.initialized {
		t.mu.Unlock()
		return
	}
	t.initialized = true
	t.mu.Unlock()

	t.rt.OnReady(func() {
		if t.rt.Window.Embedded() {
			t.initViewer()
			return
		}
		t.initRecorder()
	})
}

// initViewer handles the dashboard-iframe side of the protocol. No points
// are recorded in this mode.
func (t *Tracker) initViewer() {
	t.rt.Window.OnMessage(t.handleMessage)
	t.log.Debug("heatmap viewer mode active")
}

func (t *Tracker) initRecorder() {
	win := t.rt.Window

	t.recordPageview()
	win.OnMouseMove(t.handleMouseMove)
	win.OnClick(t.handleClick)
	win.OnScroll(t.relayScroll)
	win.OnVisibilityChange(func(visible bool) {
		if !visible {
			t.Flush()
		}
	})
	win.OnUnload(t.flushBeacon)
	t.rt.Bus.On(core.TopicNavigation, func(any) { t.recordPageview() })

	t.mu.Lock()
	if !t.started {
		t.started = true
		go t.run()
	}
	t.mu.Unlock()
}

func (t *Tracker) run() {
	ticker := time.NewTicker(t.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.Flush()
		case <-t.stopChan:
			return
		}
	}
}

// Stop halts the background flush loop.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		close(t.stopChan)
		t.started = false
	}
}

// urlAllowed enforces the site-level cap on distinct recorded URLs. Once
// the cap is reached, only already-tracked URLs keep recording; new ones
// are silently excluded until the set is reconfigured server-side.
func (t *Tracker) urlAllowed(url string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.trackedURLs[url] {
		return true
	}
	if len(t.trackedURLs) >= t.cfg.MaxHeatmaps {
		return false
	}
	t.trackedURLs[url] = true
	return true
}

func (t *Tracker) recordPageview() {
	loc := t.rt.Window.Location()
	if !t.urlAllowed(loc.Href) {
		return
	}
	t.append(Point{
		Type:       "pageview",
		URL:        loc.Href,
		DeviceType: t.rt.Window.DeviceType(),
		Timestamp:  nowFunc().UnixMilli(),
	})
}

// handleMouseMove applies the triple filter: minimum time between samples,
// random sampling probability, and minimum travel distance in normalized
// space. Raw mousemove rates would otherwise overwhelm the buffer.
func (t *Tracker) handleMouseMove(m page.MouseMove) {
	loc := t.rt.Window.Location()
	if !t.urlAllowed(loc.Href) {
		return
	}

	now := nowFunc()
	t.mu.Lock()
	if now.Sub(t.lastSample) < t.cfg.SampleInterval {
		t.mu.Unlock()
		return
	}
	if t.randFn() > t.cfg.SampleRate {
		t.mu.Unlock()
		return
	}
	x, y := t.normalizePoint(m.X, m.Y)
	if absInt(x-t.lastX)+absInt(y-t.lastY) < t.cfg.MinDistance {
		t.mu.Unlock()
		return
	}
	t.lastSample = now
	t.lastX = x
	t.lastY = y
	t.mu.Unlock()

	t.append(Point{
		Type:       "move",
		X:          x,
		Y:          y,
		URL:        loc.Href,
		DeviceType: t.rt.Window.DeviceType(),
		Timestamp:  now.UnixMilli(),
	})
}

// handleClick records every click; clicks are rare enough not to sample.
func (t *Tracker) handleClick(c page.Click) {
	loc := t.rt.Window.Location()
	if !t.urlAllowed(loc.Href) {
		return
	}
	x, y := t.normalizePoint(c.X, c.Y)
	t.append(Point{
		Type:       "click",
		X:          x,
		Y:          y,
		Selector:   c.Target.Selector,
		URL:        loc.Href,
		DeviceType: t.rt.Window.DeviceType(),
		Timestamp:  nowFunc().UnixMilli(),
	})
}

// normalizePoint maps viewport coordinates into the virtual space, folding
// the scroll offset into y so points are document-relative.
func (t *Tracker) normalizePoint(viewportX, viewportY int) (int, int) {
	win := t.rt.Window
	viewportW, _ := win.Viewport()
	_, docHeight := win.DocumentSize()
	scrollTop, _ := win.ScrollPosition()

	x := normalizeX(viewportX, viewportW, win.DeviceType())
	y := normalizeY(scrollTop+viewportY, docHeight)
	return x, y
}

func (t *Tracker) append(p Point) {
	t.mu.Lock()
	t.buffer = append(t.buffer, p)
	full := len(t.buffer) >= t.cfg.MaxBuffer
	t.mu.Unlock()
	if full {
		t.Flush()
	}
}

// Flush delivers the buffer. Failed batches are dropped, not retried.
func (t *Tracker) Flush() {
	t.mu.Lock()
	batch := t.buffer
	t.buffer = nil
	t.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := t.rt.API.Post(recordPath, recordPayload{WebsiteID: t.rt.SiteID, Points: batch}); err != nil {
		t.log.Debug("heatmap batch dropped", "count", len(batch), "error", err)
	}
}

func (t *Tracker) flushBeacon() {
	t.mu.Lock()
	batch := t.buffer
	t.buffer = nil
	t.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	t.rt.API.Beacon(recordPath, recordPayload{WebsiteID: t.rt.SiteID, Points: batch})
}

func (t *Tracker) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buffer)
}
