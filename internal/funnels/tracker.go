package funnels

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/seentics/seentics-go/internal/core"
	"github.com/seentics/seentics-go/internal/logging"
)

var nowFunc = time.Now

const (
	activePath = "/api/v1/funnels/active"
	trackPath  = "/api/v1/funnels/track"

	defaultFlushInterval = 10 * time.Second
)

type activeResponse struct {
	Funnels []Funnel `json:"funnels"`
}

// Tracker drives every active funnel's state machine. It observes the
// analytics stream exclusively through the bus, so it works no matter when
// it was loaded relative to the analytics tracker.
type Tracker struct {
	rt     *core.Runtime
	log    *slog.Logger
	sender *sender

	mu          sync.Mutex
	initialized bool
	funnels     []Funnel
	progress    map[string]*Progress
}

// New builds a funnel tracker bound to the shared runtime.
func New(rt *core.Runtime) *Tracker {
	return &Tracker{
		rt:       rt,
		log:      logging.With("component", "funnels"),
		sender:   newSender(rt.API, rt.SiteID, defaultFlushInterval),
		progress: make(map[string]*Progress),
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
		t.restoreProgress()
		t.rt.Bus.On(core.TopicPageview, t.handlePageview)
		t.rt.Bus.On(core.TopicCustomEvent, t.handleCustomEvent)
		t.rt.Window.OnUnload(t.handleUnload)
		t.rt.Sched.OnIdle(t.Load)
		t.sender.Start()
	})
}

// Load fetches active funnel definitions. Steps are defensively re-sorted
// by order so downstream lookups can assume ascending order. Definitions
// arrive after the landing pageview already fired, so the current page is
// evaluated once on install; without that, a funnel whose first step
// matches the landing path would never start for direct landings.
func (t *Tracker) Load() {
	var resp activeResponse
	if err := t.rt.API.Get(activePath+"?siteId="+t.rt.SiteID, &resp); err != nil {
		t.log.Debug("active funnel fetch failed", "error", err)
		return
	}
	for i := range resp.Funnels {
		steps := resp.Funnels[i].Steps
		sort.Slice(steps, func(a, b int) bool { return steps[a].Order < steps[b].Order })
	}

	t.mu.Lock()
	t.funnels = resp.Funnels
	t.mu.Unlock()
	t.log.Debug("loaded funnels", "count", len(resp.Funnels))

	path := t.rt.Window.Location().Path
	t.evaluate(func(step Step) bool { return stepMatchesPageview(step, path) }, path)
}

// SetFunnels installs definitions directly (replay and test path).
func (t *Tracker) SetFunnels(funnels []Funnel) {
	for i := range funnels {
		steps := funnels[i].Steps
		sort.Slice(steps, func(a, b int) bool { return steps[a].Order < steps[b].Order })
	}
	t.mu.Lock()
	t.funnels = funnels
	t.mu.Unlock()
}

// GetProgress returns the live progress record for a funnel, if any.
func (t *Tracker) GetProgress(funnelID string) (Progress, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.progress[funnelID]
	if !ok {
		return Progress{}, false
	}
	return *p, true
}

// Stop halts the background sender.
func (t *Tracker) Stop() {
	t.sender.Stop()
}

func (t *Tracker) handlePageview(payload any) {
	sig, ok := payload.(core.PageviewSignal)
	if !ok {
		return
	}
	t.evaluate(func(step Step) bool { return stepMatchesPageview(step, sig.Path) }, sig.Path)
}

func (t *Tracker) handleCustomEvent(payload any) {
	sig, ok := payload.(core.CustomEventSignal)
	if !ok {
		return
	}
	t.evaluate(func(step Step) bool { return stepMatchesEvent(step, sig.Name) }, sig.Path)
}

// evaluate advances each funnel's state machine against one observed
// activity. A funnel with no progress only reacts to its first step; a
// funnel in progress only looks at the next higher-order step; matching a
// later step out of order does not advance it.
func (t *Tracker) evaluate(matches func(Step) bool, pagePath string) {
	t.mu.Lock()
	funnels := t.funnels
	t.mu.Unlock()

	for _, funnel := range funnels {
		if len(funnel.Steps) == 0 {
			continue
		}

		t.mu.Lock()
		prog := t.progress[funnel.ID]
		t.mu.Unlock()

		if prog == nil {
			first := funnel.Steps[0]
			if !matches(first) {
				continue
			}
			t.startFunnel(funnel, first, pagePath)
			continue
		}

		next, ok := stepAfter(funnel, prog.CurrentStep)
		if !ok || !matches(next) {
			continue
		}
		t.advanceFunnel(funnel, next, pagePath)
	}
}

func (t *Tracker) startFunnel(funnel Funnel, first Step, pagePath string) {
	t.mu.Lock()
	t.progress[funnel.ID] = &Progress{
		CurrentStep:    first.Order,
		CompletedSteps: []int{first.Order},
		StartedAt:      nowFunc().UnixMilli(),
	}
	t.mu.Unlock()
	t.persistProgress()

	// Starts go out immediately on the fire-and-forget path so the
	// dashboard sees funnel entries without waiting for a batch window.
	t.rt.API.Beacon(trackPath, t.progressEvent(funnel.ID, "started", first, pagePath))
	t.rt.Bus.Emit(core.TopicFunnelStart, core.FunnelSignal{FunnelID: funnel.ID, Step: first.Order})
	t.log.Debug("funnel started", "funnel_id", funnel.ID)

	if first.Order == lastOrder(funnel) {
		t.convert(funnel, first, pagePath)
	}
}

func (t *Tracker) advanceFunnel(funnel Funnel, step Step, pagePath string) {
	t.mu.Lock()
	prog := t.progress[funnel.ID]
	if prog == nil {
		t.mu.Unlock()
		return
	}
	prog.CurrentStep = step.Order
	prog.CompletedSteps = append(prog.CompletedSteps, step.Order)
	t.mu.Unlock()
	t.persistProgress()

	if step.Order == lastOrder(funnel) {
		t.convert(funnel, step, pagePath)
		return
	}

	t.sender.Add(t.progressEvent(funnel.ID, "progress", step, pagePath))
	t.rt.Bus.Emit(core.TopicFunnelProgress, core.FunnelSignal{FunnelID: funnel.ID, Step: step.Order})
}

// convert reports the conversion, announces it, then deletes the progress
// record, in that order. There is no "completed" resting state.
func (t *Tracker) convert(funnel Funnel, step Step, pagePath string) {
	t.sender.Add(t.progressEvent(funnel.ID, "conversion", step, pagePath))
	t.rt.Bus.Emit(core.TopicFunnelConversion, core.FunnelSignal{FunnelID: funnel.ID, Step: step.Order})

	t.mu.Lock()
	delete(t.progress, funnel.ID)
	t.mu.Unlock()
	t.persistProgress()
	t.log.Debug("funnel converted", "funnel_id", funnel.ID)
}

// handleUnload reports a dropoff for every funnel still short of its final
// step, then drains the buffer through the beacon. Best effort: if the
// process is killed outright this never runs, which is accepted.
func (t *Tracker) handleUnload() {
	t.mu.Lock()
	funnels := t.funnels
	type open struct {
		funnel Funnel
		step   int
	}
	var opens []open
	for _, funnel := range funnels {
		if prog, ok := t.progress[funnel.ID]; ok && prog.CurrentStep < lastOrder(funnel) {
			opens = append(opens, open{funnel: funnel, step: prog.CurrentStep})
		}
	}
	t.mu.Unlock()

	loc := t.rt.Window.Location()
	for _, o := range opens {
		t.sender.Add(ProgressEvent{
			FunnelID:  o.funnel.ID,
			EventType: "dropoff",
			Step:      o.step,
			VisitorID: t.visitorID(),
			SessionID: t.sessionID(),
			Page:      loc.Path,
			Timestamp: nowFunc().UnixMilli(),
		})
	}
	t.sender.FlushBeacon()
}

func (t *Tracker) progressEvent(funnelID, eventType string, step Step, pagePath string) ProgressEvent {
	return ProgressEvent{
		FunnelID:  funnelID,
		EventType: eventType,
		Step:      step.Order,
		StepName:  step.Name,
		VisitorID: t.visitorID(),
		SessionID: t.sessionID(),
		Page:      pagePath,
		Timestamp: nowFunc().UnixMilli(),
	}
}

func (t *Tracker) visitorID() string {
	v, _ := t.rt.Local.Get(core.KeyVisitorID)
	return v
}

func (t *Tracker) sessionID() string {
	v, _ := t.rt.Local.Get(core.KeySessionID)
	return v
}

// persistProgress mirrors the live map to session storage after every
// mutation, so progress survives a reload within the same session.
func (t *Tracker) persistProgress() {
	t.mu.Lock()
	snapshot := make(map[string]Progress, len(t.progress))
	for id, p := range t.progress {
		snapshot[id] = *p
	}
	t.mu.Unlock()
	core.SetJSON(t.rt.Session, core.KeyFunnelProgress, snapshot, 0)
}

func (t *Tracker) restoreProgress() {
	var snapshot map[string]Progress
	if !core.GetJSON(t.rt.Session, core.KeyFunnelProgress, &snapshot) {
		return
	}
	t.mu.Lock()
	for id, p := range snapshot {
		copied := p
		t.progress[id] = &copied
	}
	t.mu.Unlock()
}

func stepAfter(funnel Funnel, currentOrder int) (Step, bool) {
	for _, step := range funnel.Steps {
		if step.Order > currentOrder {
			return step, true
		}
	}
	return Step{}, false
}

func lastOrder(funnel Funnel) int {
	if len(funnel.Steps) == 0 {
		return 0
	}
	return funnel.Steps[len(funnel.Steps)-1].Order
}
