package analytics

import (
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seentics/seentics-go/internal/core"
	"github.com/seentics/seentics-go/internal/page"
)

type eventSink struct {
	mu     sync.Mutex
	events []core.Event
}

func (s *eventSink) send(events []core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *eventSink) all() []core.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Event{}, s.events...)
}

func (s *eventSink) ofType(eventType string) []core.Event {
	var out []core.Event
	for _, ev := range s.all() {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func setup(t *testing.T, opts ...page.Option) (*Tracker, *page.Window, *eventSink, *core.Runtime) {
	t.Helper()
	sink := &eventSink{}
	win := page.NewWindow(page.Location{Hostname: "shop.example.com", Path: "/", Title: "Home"}, opts...)
	sched := core.NewScheduler(time.Millisecond, 2*time.Millisecond)
	t.Cleanup(sched.Stop)
	// maxBatch 1 flushes synchronously, so assertions see events immediately.
	queue := core.NewQueue(time.Hour, 1, sink.send)
	rt := core.NewRuntime("site_1", win, core.NewBus(), core.NewMemoryStore(), core.NewMemoryStore(),
		core.NewAPIClient("http://127.0.0.1:0"), sched, queue)

	tracker := New(rt)
	tracker.Init()
	rt.SignalReady()
	return tracker, win, sink, rt
}

func TestInitFiresExactlyOnePageview(t *testing.T) {
	tracker, _, sink, _ := setup(t)

	// A second Init must not re-register listeners or double-count.
	tracker.Init()

	pageviews := sink.ofType("pageview")
	require.Len(t, pageviews, 1)
	assert.Equal(t, "/", pageviews[0].Page)
	assert.NotEmpty(t, pageviews[0].PageViewID)
	assert.NotEmpty(t, tracker.PageViewID())
}

func TestNavigationRefiresOncePerDistinctPath(t *testing.T) {
	tracker, _, sink, rt := setup(t)
	firstID := tracker.PageViewID()

	// Same-path navigation is a no-op.
	rt.Bus.Emit(core.TopicNavigation, page.Location{Path: "/", Href: "https://shop.example.com/"})
	require.Len(t, sink.ofType("pageview"), 1)
	assert.Equal(t, firstID, tracker.PageViewID())

	rt.Window.PushState("/pricing", "Pricing")
	rt.Bus.Emit(core.TopicNavigation, rt.Window.Location())

	pageviews := sink.ofType("pageview")
	require.Len(t, pageviews, 2)
	assert.Equal(t, "/pricing", pageviews[1].Page)
	assert.NotEqual(t, firstID, tracker.PageViewID(), "path change starts a fresh page view")
}

func TestNavigationResetsScrollDepth(t *testing.T) {
	tracker, win, _, rt := setup(t, page.WithViewport(1000, 1000), page.WithDocumentSize(1000, 10000))

	win.DispatchScroll(page.Scroll{Top: 6000})
	require.Equal(t, 70, tracker.ScrollDepth())

	win.PushState("/docs", "Docs")
	rt.Bus.Emit(core.TopicNavigation, win.Location())

	assert.Zero(t, tracker.ScrollDepth())
}

func TestScrollDepthMonotonicMilestones(t *testing.T) {
	_, win, sink, _ := setup(t, page.WithViewport(1000, 1000), page.WithDocumentSize(1000, 10000))

	// 30% -> 70% -> back to 50%: only the 50 milestone fires, once.
	win.DispatchScroll(page.Scroll{Top: 2000})
	win.DispatchScroll(page.Scroll{Top: 6000})
	win.DispatchScroll(page.Scroll{Top: 4000})

	milestones := sink.ofType("scroll_depth")
	require.Len(t, milestones, 1)
	assert.Equal(t, 50, milestones[0].Properties["depth"])
}

func TestScrollReachingBottomFiresBothMilestones(t *testing.T) {
	_, win, sink, _ := setup(t, page.WithViewport(1000, 1000), page.WithDocumentSize(1000, 10000))

	win.DispatchScroll(page.Scroll{Top: 9000})

	milestones := sink.ofType("scroll_depth")
	require.Len(t, milestones, 2)
	assert.Equal(t, 50, milestones[0].Properties["depth"])
	assert.Equal(t, 100, milestones[1].Properties["depth"])
}

func TestHighValueClickHeuristics(t *testing.T) {
	_, win, sink, _ := setup(t)

	// An anonymous div is not worth an event.
	win.DispatchClick(page.Click{Target: page.Element{Tag: "div", Text: "hello world"}})
	assert.Empty(t, sink.ofType("click"))

	// A call-to-action is.
	win.DispatchClick(page.Click{Target: page.Element{Tag: "a", Text: "Sign Up Now", Href: "/register"}})
	clicks := sink.ofType("click")
	require.Len(t, clicks, 1)
	assert.Equal(t, "keyword", clicks[0].Properties["reason"])
}

func TestExplicitTrackingAttribute(t *testing.T) {
	_, win, sink, _ := setup(t)

	win.DispatchClick(page.Click{Target: page.Element{
		Tag:   "button",
		Text:  "ok",
		Attrs: map[string]string{"data-track": "hero-cta"},
	}})

	clicks := sink.ofType("click")
	require.Len(t, clicks, 1)
	assert.Equal(t, "explicit", clicks[0].Properties["reason"])
	assert.Equal(t, "hero-cta", clicks[0].Properties["name"])
}

func TestGoalSelectorClick(t *testing.T) {
	tracker, win, sink, _ := setup(t)
	tracker.mu.Lock()
	tracker.goals = []Goal{{ID: "g1", Name: "Checkout Started", Selector: "#checkout-btn"}}
	tracker.mu.Unlock()

	win.DispatchClick(page.Click{Target: page.Element{Tag: "button", ID: "checkout-btn", Text: "Pay"}})

	goals := sink.ofType("goal")
	require.Len(t, goals, 1)
	assert.Equal(t, "Checkout Started", goals[0].EventName)
	assert.Equal(t, "g1", goals[0].Properties["goal_id"])
}

func TestFormSubmissionRedactsSensitiveFields(t *testing.T) {
	_, win, sink, _ := setup(t)

	win.DispatchFormSubmit(page.FormSubmit{
		FormID: "signup",
		Fields: []page.FormField{
			{Name: "email", Type: "text", Value: "user@example.com"},
			{Name: "password", Type: "password", Value: "hunter2"},
			{Name: "credit_card_number", Type: "text", Value: "4111111111111111"},
			{Name: "newsletter", Type: "checkbox", Value: "yes", Checked: false},
			{Name: "plan", Type: "radio", Value: "pro", Checked: true},
		},
	})

	forms := sink.ofType("form_submission")
	require.Len(t, forms, 1)
	data, ok := forms[0].Properties["form_data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "user@example.com", data["email"])
	assert.Equal(t, "pro", data["plan"])
	assert.NotContains(t, data, "password")
	assert.NotContains(t, data, "credit_card_number")
	assert.NotContains(t, data, "newsletter")
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 120))

	// Two-byte runes: an odd byte cap lands mid-rune and must back up.
	accents := strings.Repeat("é", 100)
	cut := truncate(accents, 101)
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, 100, len(cut))

	emoji := strings.Repeat("\U0001F600", 10)
	for max := 1; max < 8; max++ {
		assert.True(t, utf8.ValidString(truncate(emoji, max)), "cap %d", max)
	}
}

func TestLongFormValuesCapAtRuneBoundary(t *testing.T) {
	_, win, sink, _ := setup(t)

	win.DispatchFormSubmit(page.FormSubmit{
		FormID: "feedback",
		Fields: []page.FormField{
			{Name: "comment", Type: "text", Value: strings.Repeat("ü", 80)},
		},
	})

	forms := sink.ofType("form_submission")
	require.Len(t, forms, 1)
	data := forms[0].Properties["form_data"].(map[string]any)
	captured := data["comment"].(string)
	assert.True(t, utf8.ValidString(captured), "capping must not split a rune")
	assert.LessOrEqual(t, len(captured), maxCapturedValueLength)
}

func TestVideoMilestonesDeduplicated(t *testing.T) {
	_, win, sink, _ := setup(t)

	// Repeated timeupdate-style firing around the same position.
	win.DispatchVideoProgress(page.VideoProgress{Src: "intro.mp4", CurrentTime: 26, Duration: 100})
	win.DispatchVideoProgress(page.VideoProgress{Src: "intro.mp4", CurrentTime: 27, Duration: 100})
	win.DispatchVideoProgress(page.VideoProgress{Src: "intro.mp4", CurrentTime: 55, Duration: 100})

	events := sink.ofType("video_progress")
	require.Len(t, events, 2)
	assert.Equal(t, 25, events[0].Properties["milestone"])
	assert.Equal(t, 50, events[1].Properties["milestone"])
}

func TestCustomEventCarriesIdentityAndUTM(t *testing.T) {
	tracker, _, sink, rt := setup(t)
	rt.Local.Set(core.KeyVisitorID, "visitor_v1", 0)
	rt.Local.Set(core.KeySessionID, "session_s1", 0)
	core.SetJSON(rt.Session, core.KeyUTM, map[string]string{"utm_source": "newsletter"}, 0)

	tracker.Track("plan_selected", map[string]any{"plan": "pro"})

	events := sink.ofType("custom")
	require.Len(t, events, 1)
	assert.Equal(t, "plan_selected", events[0].EventName)
	assert.Equal(t, "visitor_v1", events[0].VisitorID)
	assert.Equal(t, "session_s1", events[0].SessionID)
	assert.Equal(t, "newsletter", events[0].UTM["utm_source"])
}

func TestTimeOnPage(t *testing.T) {
	tracker, _, _, _ := setup(t)
	base := time.Now()
	nowFunc = func() time.Time { return base.Add(90 * time.Second) }
	t.Cleanup(func() { nowFunc = time.Now })

	assert.GreaterOrEqual(t, tracker.TimeOnPage(), 90*time.Second)
}
