package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNavigateUpdatesLocationAndResetsScroll(t *testing.T) {
	win := NewWindow(Location{Hostname: "shop.example.com", Path: "/"})
	win.DispatchScroll(Scroll{Top: 800})

	var seen []Location
	win.OnNavigate(func(loc Location) { seen = append(seen, loc) })

	win.PushState("/pricing", "Pricing")

	require.Len(t, seen, 1)
	assert.Equal(t, "/pricing", seen[0].Path)
	assert.Equal(t, "https://shop.example.com/pricing", seen[0].Href)
	assert.Equal(t, "https://shop.example.com/", seen[0].Referrer, "previous href becomes the referrer")

	top, left := win.ScrollPosition()
	assert.Zero(t, top)
	assert.Zero(t, left)
}

func TestSamePathNavigationStillDispatches(t *testing.T) {
	win := NewWindow(Location{Hostname: "shop.example.com", Path: "/a"})
	var navs int
	win.OnNavigate(func(Location) { navs++ })

	win.PushState("/a", "A")
	win.ReplaceState("/a", "A")

	// Deduping is the navigation watcher's job, not the window's.
	assert.Equal(t, 2, navs)
}

func TestPanickingListenerDoesNotStopOthers(t *testing.T) {
	win := NewWindow(Location{Hostname: "shop.example.com"})
	var reached bool
	win.OnClick(func(Click) { panic("bad listener") })
	win.OnClick(func(Click) { reached = true })

	assert.NotPanics(t, func() {
		win.DispatchClick(Click{Target: Element{Tag: "button"}})
	})
	assert.True(t, reached)
}

func TestUnloadFiresExactlyOnce(t *testing.T) {
	win := NewWindow(Location{Hostname: "shop.example.com"})
	var fires int
	win.OnUnload(func() { fires++ })

	win.Unload()
	win.Unload()
	assert.Equal(t, 1, fires)
}

func TestVisibilityChangeOnlyOnActualChange(t *testing.T) {
	win := NewWindow(Location{Hostname: "shop.example.com"})
	var changes []bool
	win.OnVisibilityChange(func(v bool) { changes = append(changes, v) })

	win.SetVisible(true) // already visible
	win.SetVisible(false)
	win.SetVisible(false)
	win.SetVisible(true)

	assert.Equal(t, []bool{false, true}, changes)
}

func TestScrollToIsSilent(t *testing.T) {
	win := NewWindow(Location{Hostname: "shop.example.com"})
	var scrolls int
	win.OnScroll(func(Scroll) { scrolls++ })

	win.ScrollTo(0, 500)

	top, _ := win.ScrollPosition()
	assert.Equal(t, 500, top)
	assert.Zero(t, scrolls, "programmatic scroll does not dispatch")
}

func TestListenerRegistrationDuringDispatchDoesNotDeadlock(t *testing.T) {
	win := NewWindow(Location{Hostname: "shop.example.com"})
	win.OnClick(func(Click) {
		win.OnClick(func(Click) {})
	})
	assert.NotPanics(t, func() {
		win.DispatchClick(Click{})
	})
}

func TestMatchesSelector(t *testing.T) {
	el := Element{
		Tag:      "button",
		ID:       "cta",
		Classes:  []string{"btn", "btn-primary"},
		Selector: "div.hero > button#cta",
	}

	assert.True(t, MatchesSelector(el, "#cta"))
	assert.False(t, MatchesSelector(el, "#other"))
	assert.True(t, MatchesSelector(el, ".btn-primary"))
	assert.False(t, MatchesSelector(el, ".missing"))
	assert.True(t, MatchesSelector(el, "button"))
	assert.True(t, MatchesSelector(el, "BUTTON"))
	assert.True(t, MatchesSelector(el, "div.hero > button#cta"))
	assert.False(t, MatchesSelector(el, ""))
}

func TestDeviceTypeFor(t *testing.T) {
	assert.Equal(t, "mobile", DeviceTypeFor(375))
	assert.Equal(t, "mobile", DeviceTypeFor(768))
	assert.Equal(t, "tablet", DeviceTypeFor(769))
	assert.Equal(t, "tablet", DeviceTypeFor(1024))
	assert.Equal(t, "desktop", DeviceTypeFor(1440))
}

func TestInjectionsAndDismiss(t *testing.T) {
	win := NewWindow(Location{Hostname: "shop.example.com"})
	win.Inject(Injection{Kind: "modal", WorkflowID: "wf_1"})
	win.Inject(Injection{Kind: "banner", WorkflowID: "wf_2"})

	require.Len(t, win.Injections(), 2)
	win.Dismiss("modal")
	remaining := win.Injections()
	require.Len(t, remaining, 1)
	assert.Equal(t, "banner", remaining[0].Kind)
}

func TestCrossFrameMessaging(t *testing.T) {
	win := NewWindow(Location{Hostname: "shop.example.com"}, WithEmbedded())
	assert.True(t, win.Embedded())

	var received []Message
	win.OnMessage(func(m Message) { received = append(received, m) })
	win.ReceiveMessage(Message{Type: "PING"})
	require.Len(t, received, 1)

	win.PostToParent(Message{Type: "PONG"})
	msgs := win.ParentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "PONG", msgs[0].Type)
}
