package core

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/seentics/seentics-go/internal/logging"
	"github.com/seentics/seentics-go/internal/page"
)

// Runtime is the one shared core instance every tracker receives. It is
// constructed once at bootstrap and passed by reference; nothing looks it
// up ambiently.
type Runtime struct {
	SiteID  string
	Window  *page.Window
	Bus     *Bus
	Local   Store // durable, survives restarts
	Session Store // process lifetime only
	API     *APIClient
	Sched   *Scheduler
	Queue   *Queue

	log   *slog.Logger
	ready atomic.Bool
}

// NewRuntime assembles a runtime from already-built parts.
func NewRuntime(siteID string, win *page.Window, bus *Bus, local, session Store, api *APIClient, sched *Scheduler, queue *Queue) *Runtime {
	return &Runtime{
		SiteID:  siteID,
		Window:  win,
		Bus:     bus,
		Local:   local,
		Session: session,
		API:     api,
		Sched:   sched,
		Queue:   queue,
		log:     logging.With("component", "core"),
	}
}

// Log returns the core-scoped logger.
func (r *Runtime) Log() *slog.Logger { return r.log }

// SignalReady marks the runtime ready and emits core:ready exactly once.
func (r *Runtime) SignalReady() {
	if r.ready.CompareAndSwap(false, true) {
		r.log.Debug("core ready", "site_id", r.SiteID)
		r.Bus.Emit(TopicReady, nil)
	}
}

// Ready reports whether the ready signal already fired. Queryable
// synchronously so late subscribers avoid the lost-wakeup race.
func (r *Runtime) Ready() bool {
	return r.ready.Load()
}

// OnReady runs fn immediately when the runtime is already ready, otherwise
// once core:ready fires.
func (r *Runtime) OnReady(fn func()) {
	if r.Ready() {
		fn()
		return
	}
	var once sync.Once
	off := r.Bus.On(TopicReady, func(any) {
		once.Do(fn)
	})
	// The signal may have raced the subscription; re-check so fn is not lost.
	if r.Ready() {
		off()
		once.Do(fn)
	}
}
