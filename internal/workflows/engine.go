package workflows

import (
	"log/slog"
	"sync"
	"time"

	"github.com/seentics/seentics-go/internal/core"
	"github.com/seentics/seentics-go/internal/logging"
	"github.com/seentics/seentics-go/internal/page"
)

var nowFunc = time.Now

const (
	activePathPrefix = "/api/v1/workflows/site/"

	// A pointer racing toward the top chrome this close to the edge is read
	// as intent to leave the page.
	exitIntentMaxY = 10
)

type activeResponse struct {
	Workflows []Workflow `json:"workflows"`
}

// Engine runs the behavior automations for one page. Triggers arrive from
// the bus and the window; each firing walks the workflow graph from the
// trigger node, evaluating conditions and executing actions in order.
type Engine struct {
	rt      *core.Runtime
	log     *slog.Logger
	target  RenderTarget
	version string
	gate    frequencyGate

	mu          sync.Mutex
	initialized bool
	workflows   []Workflow
	pageTimers  []*time.Timer
	exitFired   bool
}

// New builds an engine bound to the shared runtime. runtimeVersion is
// matched against each definition's min_version gate.
func New(rt *core.Runtime, runtimeVersion string) *Engine {
	return &Engine{
		rt:      rt,
		log:     logging.With("component", "workflows"),
		target:  rt.Window,
		version: runtimeVersion,
		gate:    frequencyGate{local: rt.Local, session: rt.Session},
	}
}

// SetRenderTarget redirects visual actions away from the page window.
func (e *Engine) SetRenderTarget(rt RenderTarget) {
	e.mu.Lock()
	e.target = rt
	e.mu.Unlock()
}

// Init arms the engine once the core is ready. Idempotent.
func (e *Engine) Init() {
	e.mu.Lock()
	if e.initialized {
		e.mu.Unlock()
		return
	}
	e.initialized = true
	e.mu.Unlock()

	e.rt.OnReady(func() {
		e.rt.Bus.On(core.TopicPageview, e.handlePageview)
		e.rt.Bus.On(core.TopicNavigation, e.handleNavigation)
		e.rt.Window.OnClick(e.handleClick)
		e.rt.Window.OnMouseMove(e.handleMouseMove)
		e.rt.Sched.OnIdle(e.Load)
	})
}

// Load fetches the site's active definitions and installs the runnable
// subset.
func (e *Engine) Load() {
	var resp activeResponse
	if err := e.rt.API.Get(activePathPrefix+e.rt.SiteID+"/active", &resp); err != nil {
		e.log.Debug("active workflow fetch failed", "error", err)
		return
	}
	e.install(resp.Workflows)
}

// SetWorkflows installs definitions directly (replay and test path).
func (e *Engine) SetWorkflows(workflows []Workflow) {
	e.install(workflows)
}

func (e *Engine) install(workflows []Workflow) {
	runnable := active(workflows, e.version)
	e.mu.Lock()
	e.workflows = runnable
	e.mu.Unlock()
	e.log.Debug("installed workflows", "count", len(runnable))

	// Definitions may land after the first pageview already happened; arm
	// time triggers for the page the visitor is on now.
	e.armTimeTriggers()
}

// Stop cancels pending time triggers.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.cancelTimersLocked()
	e.mu.Unlock()
}

func (e *Engine) handlePageview(payload any) {
	if _, ok := payload.(core.PageviewSignal); !ok {
		return
	}
	e.fireTriggers("Page View")
	e.armTimeTriggers()
}

// handleNavigation resets per-page trigger state. The pageview signal for
// the new page re-arms everything.
func (e *Engine) handleNavigation(payload any) {
	if _, ok := payload.(page.Location); !ok {
		return
	}
	e.mu.Lock()
	e.cancelTimersLocked()
	e.exitFired = false
	e.mu.Unlock()
}

func (e *Engine) handleClick(c page.Click) {
	e.mu.Lock()
	workflows := e.workflows
	e.mu.Unlock()

	for _, wf := range workflows {
		for _, trigger := range wf.triggers("Element Click") {
			selector := trigger.Data.settingString("selector")
			if selector == "" || !page.MatchesSelector(c.Target, selector) {
				continue
			}
			e.runFrom(wf, trigger)
		}
	}
}

// handleMouseMove watches for exit intent: a pointer at the very top of the
// viewport, once per page.
func (e *Engine) handleMouseMove(m page.MouseMove) {
	if m.Y > exitIntentMaxY {
		return
	}
	e.mu.Lock()
	if e.exitFired {
		e.mu.Unlock()
		return
	}
	e.exitFired = true
	e.mu.Unlock()

	e.fireTriggers("Exit Intent")
}

// armTimeTriggers schedules one timer per Time Spent trigger for the
// current page. Timers from the previous page are cancelled first.
func (e *Engine) armTimeTriggers() {
	e.mu.Lock()
	e.cancelTimersLocked()
	workflows := e.workflows
	e.mu.Unlock()

	for _, wf := range workflows {
		for _, trigger := range wf.triggers("Time Spent") {
			seconds := trigger.Data.settingInt("seconds")
			if seconds <= 0 {
				continue
			}
			wf, trigger := wf, trigger
			timer := time.AfterFunc(time.Duration(seconds)*time.Second, func() {
				e.runFrom(wf, trigger)
			})
			e.mu.Lock()
			e.pageTimers = append(e.pageTimers, timer)
			e.mu.Unlock()
		}
	}
}

func (e *Engine) cancelTimersLocked() {
	for _, timer := range e.pageTimers {
		timer.Stop()
	}
	e.pageTimers = nil
}

func (e *Engine) fireTriggers(title string) {
	e.mu.Lock()
	workflows := e.workflows
	e.mu.Unlock()

	for _, wf := range workflows {
		for _, trigger := range wf.triggers(title) {
			e.runFrom(wf, trigger)
		}
	}
}

// runFrom walks the graph from a fired trigger. The walk stops at the first
// condition that evaluates false; action nodes blocked by their frequency
// cap are skipped without stopping the walk. A definition whose edges loop
// back to a node already walked is cut off there: a broken graph must not
// hold the dispatching goroutine.
func (e *Engine) runFrom(wf Workflow, trigger Node) {
	visited := map[string]bool{trigger.ID: true}
	current := trigger
	for {
		next, ok := wf.nextNode(current.ID)
		if !ok {
			return
		}
		if visited[next.ID] {
			e.log.Warn("workflow edges form a cycle", "workflow_id", wf.ID, "node_id", next.ID)
			return
		}
		visited[next.ID] = true
		switch next.Data.Type {
		case NodeCondition:
			if !e.evalCondition(next) {
				return
			}
		case NodeAction:
			frequency := next.Data.settingString("frequency")
			if frequency == "" {
				frequency = FreqEveryTrigger
			}
			if e.gate.allow(frequency, wf.ID, next.ID) {
				e.execAction(wf, next)
			}
		}
		current = next
	}
}
