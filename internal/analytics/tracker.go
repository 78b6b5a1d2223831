// Package analytics tracks pageviews, clicks, scroll depth, form
// submissions, and video engagement, feeding structured events into the
// core queue. It depends on the core runtime and arms itself once the
// ready signal fires.
package analytics

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/seentics/seentics-go/internal/core"
	"github.com/seentics/seentics-go/internal/logging"
	"github.com/seentics/seentics-go/internal/page"
)

var nowFunc = time.Now

// Scroll milestones are deliberately coarse: two thresholds preserve the
// "did they reach the bottom" signal without flooding the queue.
var scrollMilestones = []int{50, 100}

var videoMilestones = []int{25, 50, 75, 100}

// Goal is a server-configured click target.
type Goal struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Selector string `json:"selector"`
}

type trackerConfig struct {
	Goals []Goal `json:"goals"`
}

// Tracker is the analytics tracker. One instance per pipeline.
type Tracker struct {
	rt  *core.Runtime
	log *slog.Logger

	mu              sync.Mutex
	initialized     bool
	pageViewID      string
	currentPath     string
	pageStart       time.Time
	maxScrollDepth  int
	firedMilestones map[int]bool
	videoSeen       map[string]map[int]bool
	goals           []Goal
	profile         deviceProfile
	profileLoaded   bool
}

// New builds an analytics tracker bound to the shared runtime.
func New(rt *core.Runtime) *Tracker {
	return &Tracker{
		rt:              rt,
		log:             logging.With("component", "analytics"),
		firedMilestones: make(map[int]bool),
		videoSeen:       make(map[string]map[int]bool),
	}
}

// Init wires listeners and fires the first pageview once the core is
// ready. Calling it twice is a no-op so listeners are never duplicated.
func (t *Tracker) Init() {
	t.mu.Lock()
	if t.initialized {
		t.mu.Unlock()
		return
	}
	t.initialized = true
	t.mu.Unlock()

	t.rt.OnReady(func() {
		win := t.rt.Window
		win.OnClick(t.handleClick)
		win.OnScroll(t.handleScroll)
		win.OnFormSubmit(t.handleFormSubmit)
		win.OnVideoProgress(t.handleVideoProgress)
		t.rt.Bus.On(core.TopicNavigation, t.handleNavigation)

		t.rt.Sched.OnIdle(t.loadProfile)
		t.rt.Sched.OnIdle(t.loadGoals)

		t.TrackPageView()
	})
}

// Track enqueues a custom event and announces it on the bus.
func (t *Tracker) Track(name string, properties map[string]any) {
	if name == "" {
		return
	}
	ev := t.buildEvent("custom", name, properties)
	t.rt.Queue.Add(ev)
	t.rt.Bus.Emit(core.TopicCustomEvent, core.CustomEventSignal{
		Name:       name,
		Path:       ev.Page,
		Properties: properties,
	})
}

// Identify attaches caller-supplied traits to the visitor.
func (t *Tracker) Identify(traits map[string]any) {
	if len(traits) == 0 {
		return
	}
	t.rt.Queue.Add(t.buildEvent("identify", "", traits))
}

// TrackPageView starts a fresh page view: new page-view id, reset scroll
// and timing counters, one enqueued pageview event, one bus announcement.
func (t *Tracker) TrackPageView() {
	loc := t.rt.Window.Location()

	t.mu.Lock()
	t.pageViewID = core.NewID("pv")
	t.currentPath = loc.Path
	t.pageStart = nowFunc()
	t.maxScrollDepth = 0
	t.firedMilestones = make(map[int]bool)
	pageViewID := t.pageViewID
	t.mu.Unlock()

	t.rt.Queue.Add(t.buildEvent("pageview", "", nil))
	t.rt.Bus.Emit(core.TopicPageview, core.PageviewSignal{
		Path:       loc.Path,
		URL:        loc.Href,
		Title:      loc.Title,
		PageViewID: pageViewID,
	})
}

// TrackClick enqueues a click event for an element with extra properties.
func (t *Tracker) TrackClick(el page.Element, properties map[string]any) {
	props := map[string]any{
		"tag":      el.Tag,
		"text":     truncate(el.Text, 120),
		"selector": el.Selector,
	}
	if el.ID != "" {
		props["element_id"] = el.ID
	}
	if el.Href != "" {
		props["href"] = el.Href
	}
	for k, v := range properties {
		props[k] = v
	}

	ev := t.buildEvent("click", "", props)
	t.rt.Queue.Add(ev)
	t.rt.Bus.Emit(core.TopicClick, core.ClickSignal{Element: el, Path: ev.Page})
}

// PageViewID returns the current page view identifier.
func (t *Tracker) PageViewID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pageViewID
}

// TimeOnPage returns the elapsed time since the current page view began.
func (t *Tracker) TimeOnPage() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pageStart.IsZero() {
		return 0
	}
	return nowFunc().Sub(t.pageStart)
}

// ScrollDepth returns the deepest scroll percentage seen this page view.
func (t *Tracker) ScrollDepth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxScrollDepth
}

func (t *Tracker) handleNavigation(payload any) {
	loc, ok := payload.(page.Location)
	if !ok {
		return
	}
	t.mu.Lock()
	same := loc.Path == t.currentPath
	t.mu.Unlock()
	if same {
		// Same-path pushState calls must not restart the page view.
		return
	}
	t.TrackPageView()
}

func (t *Tracker) handleClick(c page.Click) {
	for _, goal := range t.currentGoals() {
		if matchesSelector(c.Target, goal.Selector) {
			ev := t.buildEvent("goal", goal.Name, map[string]any{
				"goal_id":  goal.ID,
				"selector": goal.Selector,
			})
			t.rt.Queue.Add(ev)
		}
	}

	classification := classifyClick(c.Target)
	if !classification.Tracked {
		return
	}
	props := map[string]any{"reason": classification.Reason}
	if classification.Name != "" {
		props["name"] = classification.Name
	}
	t.TrackClick(c.Target, props)
}

func (t *Tracker) handleScroll(s page.Scroll) {
	_, viewportH := t.rt.Window.Viewport()
	_, docHeight := t.rt.Window.DocumentSize()
	if docHeight <= 0 {
		return
	}

	depth := (s.Top + viewportH) * 100 / docHeight
	if depth > 100 {
		depth = 100
	}
	if depth < 0 {
		depth = 0
	}

	var fire []int
	t.mu.Lock()
	if depth <= t.maxScrollDepth {
		t.mu.Unlock()
		return
	}
	t.maxScrollDepth = depth
	for _, milestone := range scrollMilestones {
		if depth >= milestone && !t.firedMilestones[milestone] {
			t.firedMilestones[milestone] = true
			fire = append(fire, milestone)
		}
	}
	t.mu.Unlock()

	for _, milestone := range fire {
		ev := t.buildEvent("scroll_depth", fmt.Sprintf("scroll_%d", milestone), map[string]any{
			"depth": milestone,
		})
		t.rt.Queue.Add(ev)
	}
}

func (t *Tracker) handleFormSubmit(form page.FormSubmit) {
	props := map[string]any{
		"form_data": captureFormData(form),
	}
	if form.FormID != "" {
		props["form_id"] = form.FormID
	}
	if form.Action != "" {
		props["action"] = form.Action
	}
	t.rt.Queue.Add(t.buildEvent("form_submission", "", props))
}

func (t *Tracker) handleVideoProgress(v page.VideoProgress) {
	if v.Duration <= 0 || v.Src == "" {
		return
	}
	pct := int(v.CurrentTime / v.Duration * 100)

	var fire []int
	t.mu.Lock()
	seen := t.videoSeen[v.Src]
	if seen == nil {
		seen = make(map[int]bool)
		t.videoSeen[v.Src] = seen
	}
	for _, milestone := range videoMilestones {
		if pct >= milestone && !seen[milestone] {
			seen[milestone] = true
			fire = append(fire, milestone)
		}
	}
	t.mu.Unlock()

	for _, milestone := range fire {
		ev := t.buildEvent("video_progress", "", map[string]any{
			"src":       v.Src,
			"milestone": milestone,
		})
		t.rt.Queue.Add(ev)
	}
}

func (t *Tracker) loadProfile() {
	width, _ := t.rt.Window.Viewport()
	profile := profileFromUserAgent(t.rt.Window.UserAgent(), width)

	t.mu.Lock()
	t.profile = profile
	t.profileLoaded = true
	t.mu.Unlock()
}

func (t *Tracker) loadGoals() {
	var cfg trackerConfig
	path := "/api/v1/tracker/config/" + t.rt.SiteID
	if err := t.rt.API.Get(path, &cfg); err != nil {
		t.log.Debug("tracker config fetch failed", "error", err)
		return
	}
	t.mu.Lock()
	t.goals = cfg.Goals
	t.mu.Unlock()
}

func (t *Tracker) currentGoals() []Goal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.goals
}

func (t *Tracker) buildEvent(eventType, eventName string, properties map[string]any) core.Event {
	loc := t.rt.Window.Location()

	t.mu.Lock()
	pageViewID := t.pageViewID
	profile := t.profile
	t.mu.Unlock()

	ev := core.Event{
		EventType:  eventType,
		EventName:  eventName,
		PageViewID: pageViewID,
		Page:       loc.Path,
		PageURL:    loc.Href,
		Properties: properties,
		Timestamp:  nowFunc().UnixMilli(),
		Referrer:   loc.Referrer,
		Browser:    profile.Browser,
		OS:         profile.OS,
		Device:     profile.Device,
	}

	if visitor, ok := t.rt.Local.Get(core.KeyVisitorID); ok {
		ev.VisitorID = visitor
	}
	if session, ok := t.rt.Local.Get(core.KeySessionID); ok {
		ev.SessionID = session
	}
	var utm map[string]string
	if core.GetJSON(t.rt.Session, core.KeyUTM, &utm) && len(utm) > 0 {
		ev.UTM = utm
	}
	return ev
}

// truncate caps s at max bytes, backing the cut up to a rune boundary so a
// multi-byte character is never split.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
