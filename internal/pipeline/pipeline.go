// Package pipeline assembles the full tracking stack: it builds the shared
// runtime, establishes identity and attribution, wires the navigation
// watcher and the batch delivery path, and boots every tracker against the
// single ready signal.
package pipeline

import (
	"log/slog"
	"sync"
	"time"

	"github.com/seentics/seentics-go/internal/analytics"
	"github.com/seentics/seentics-go/internal/core"
	"github.com/seentics/seentics-go/internal/funnels"
	"github.com/seentics/seentics-go/internal/heatmap"
	"github.com/seentics/seentics-go/internal/logging"
	"github.com/seentics/seentics-go/internal/page"
	"github.com/seentics/seentics-go/internal/workflows"
)

const (
	batchPath = "/api/v1/analytics/event/batch"

	defaultFlushInterval = 10 * time.Second
	defaultMaxBatch      = 20

	idleDelay    = 2 * time.Second
	idleDeadline = 5 * time.Second
)

// Options configures one pipeline boot.
type Options struct {
	SiteID  string
	APIHost string
	Window  *page.Window
	Version string

	// DataDir persists visitor identity across restarts. Empty keeps
	// everything in memory.
	DataDir string

	// FlushInterval and MaxBatch tune the analytics queue; zero values take
	// the defaults.
	FlushInterval time.Duration
	MaxBatch      int

	// Heatmaps enables coordinate recording. Off by default: it is the one
	// tracker with real event volume.
	Heatmaps      bool
	HeatmapConfig *heatmap.Config
}

type batchPayload struct {
	SiteID string       `json:"siteId"`
	Events []core.Event `json:"events"`
}

// Pipeline is one booted tracking stack bound to one page window.
type Pipeline struct {
	rt  *core.Runtime
	log *slog.Logger

	Analytics *analytics.Tracker
	Funnels   *funnels.Tracker
	Workflows *workflows.Engine
	Heatmap   *heatmap.Tracker

	identity *identityManager
	shutdown sync.Once
}

// Boot builds and starts the pipeline. By the time it returns the ready
// signal has fired, identity exists, and the first pageview is queued.
func Boot(opts Options) *Pipeline {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = defaultMaxBatch
	}

	var local core.Store
	if opts.DataDir != "" {
		local = core.NewFileStore(opts.DataDir + "/seentics_state.json")
	} else {
		local = core.NewMemoryStore()
	}

	api := core.NewAPIClient(opts.APIHost)
	queue := core.NewQueue(opts.FlushInterval, opts.MaxBatch, func(events []core.Event) error {
		return api.Post(batchPath, batchPayload{SiteID: opts.SiteID, Events: events})
	})
	sched := core.NewScheduler(idleDelay, idleDeadline)
	rt := core.NewRuntime(opts.SiteID, opts.Window, core.NewBus(), local, core.NewMemoryStore(), api, sched, queue)

	p := &Pipeline{
		rt:       rt,
		log:      logging.With("component", "pipeline"),
		identity: newIdentityManager(rt),
	}

	watchNavigation(rt)
	p.identity.ensure()
	p.identity.bindLiveness()
	captureUTM(rt)

	p.Analytics = analytics.New(rt)
	p.Funnels = funnels.New(rt)
	p.Workflows = workflows.New(rt, opts.Version)
	p.Analytics.Init()
	p.Funnels.Init()
	p.Workflows.Init()

	if opts.Heatmaps {
		cfg := heatmap.DefaultConfig()
		if opts.HeatmapConfig != nil {
			cfg = *opts.HeatmapConfig
		}
		p.Heatmap = heatmap.New(rt, cfg)
		p.Heatmap.Init()
	}

	rt.Window.OnUnload(func() { p.drainToBeacon() })
	rt.SignalReady()
	p.log.Debug("pipeline booted", "site_id", opts.SiteID)
	return p
}

// Runtime exposes the shared runtime for embedders and tests.
func (p *Pipeline) Runtime() *core.Runtime { return p.rt }

// VisitorID returns the durable visitor identifier.
func (p *Pipeline) VisitorID() string {
	v, _ := p.rt.Local.Get(core.KeyVisitorID)
	return v
}

// SessionID returns the current session identifier.
func (p *Pipeline) SessionID() string {
	v, _ := p.rt.Local.Get(core.KeySessionID)
	return v
}

// Flush forces the analytics queue out immediately.
func (p *Pipeline) Flush() { p.rt.Queue.Flush() }

// Shutdown unloads the page (funnel dropoffs, heatmap beacon), drains the
// analytics queue through the beacon path, and stops background work.
// Idempotent.
func (p *Pipeline) Shutdown() {
	p.shutdown.Do(func() {
		p.rt.Window.Unload()
		p.Funnels.Stop()
		p.Workflows.Stop()
		if p.Heatmap != nil {
			p.Heatmap.Stop()
		}
		p.rt.Sched.Stop()
	})
}

// drainToBeacon hands whatever is still queued to the fire-and-forget
// path. Regular delivery cannot be trusted during unload.
func (p *Pipeline) drainToBeacon() {
	events := p.rt.Queue.Drain()
	if len(events) == 0 {
		return
	}
	p.rt.API.Beacon(batchPath, batchPayload{SiteID: p.rt.SiteID, Events: events})
}

// watchNavigation is the single owner of the page-change decision: it
// collapses same-path history calls and republishes real changes on the
// bus for every tracker.
func watchNavigation(rt *core.Runtime) {
	lastPath := rt.Window.Location().Path
	var mu sync.Mutex
	rt.Window.OnNavigate(func(loc page.Location) {
		mu.Lock()
		if loc.Path == lastPath {
			mu.Unlock()
			return
		}
		lastPath = loc.Path
		mu.Unlock()
		rt.Bus.Emit(core.TopicNavigation, loc)
	})
}
