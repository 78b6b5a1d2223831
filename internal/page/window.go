package page

import (
	"fmt"
	"sync"

	"github.com/seentics/seentics-go/internal/logging"
)

// Window is the single shared page surface handed to every tracker. All
// dispatch is synchronous on the caller's goroutine, mirroring the
// single-threaded event loop the pipeline was designed around. A panicking
// listener is contained here so one misbehaving consumer cannot take the
// host application down with it.
type Window struct {
	mu sync.Mutex

	loc        Location
	userAgent  string
	viewportW  int
	viewportH  int
	docWidth   int
	docHeight  int
	scrollTop  int
	scrollLeft int
	embedded   bool
	visible    bool
	unloaded   bool

	clickFns  []func(Click)
	moveFns   []func(MouseMove)
	scrollFns []func(Scroll)
	formFns   []func(FormSubmit)
	videoFns  []func(VideoProgress)
	keyFns    []func(KeyPress)
	touchFns  []func(Touch)
	navFns    []func(Location)
	visFns    []func(bool)
	unloadFns []func()
	msgFns    []func(Message)

	parentMsgs []Message
	injections []Injection
	redirects  []string
}

// Option configures a Window at construction time.
type Option func(*Window)

// WithViewport sets the initial viewport size.
func WithViewport(w, h int) Option {
	return func(win *Window) {
		win.viewportW = w
		win.viewportH = h
	}
}

// WithDocumentSize sets the full scrollable document dimensions.
func WithDocumentSize(w, h int) Option {
	return func(win *Window) {
		win.docWidth = w
		win.docHeight = h
	}
}

// WithUserAgent sets the navigator user agent string.
func WithUserAgent(ua string) Option {
	return func(win *Window) { win.userAgent = ua }
}

// WithEmbedded marks the window as living inside a hosting frame
// (window !== window.top in the original runtime).
func WithEmbedded() Option {
	return func(win *Window) { win.embedded = true }
}

// NewWindow builds a window at the given location with sane defaults.
func NewWindow(loc Location, opts ...Option) *Window {
	w := &Window{
		loc:       normalizeLocation(loc),
		viewportW: 1280,
		viewportH: 800,
		docWidth:  1280,
		docHeight: 2400,
		visible:   true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func normalizeLocation(loc Location) Location {
	if loc.Path == "" {
		loc.Path = "/"
	}
	if loc.Href == "" {
		loc.Href = "https://" + loc.Hostname + loc.Path
	}
	if loc.Query == nil {
		loc.Query = map[string]string{}
	}
	return loc
}

// Location returns the current location snapshot.
func (w *Window) Location() Location {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loc
}

// UserAgent returns the navigator user agent string.
func (w *Window) UserAgent() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.userAgent
}

// Viewport returns the current viewport dimensions.
func (w *Window) Viewport() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewportW, w.viewportH
}

// DocumentSize returns the full scrollable document dimensions.
func (w *Window) DocumentSize() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.docWidth, w.docHeight
}

// ScrollPosition returns the current scroll offsets.
func (w *Window) ScrollPosition() (top, left int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.scrollTop, w.scrollLeft
}

// DeviceType buckets the viewport into desktop/tablet/mobile.
func (w *Window) DeviceType() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return DeviceTypeFor(w.viewportW)
}

// Embedded reports whether the window lives inside a hosting frame.
func (w *Window) Embedded() bool {
	return w.embedded
}

// Visible reports page visibility (visibilitychange analog).
func (w *Window) Visible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visible
}

// Listener registration. Registration order is dispatch order.

func (w *Window) OnClick(fn func(Click)) {
	w.mu.Lock()
	w.clickFns = append(w.clickFns, fn)
	w.mu.Unlock()
}
func (w *Window) OnMouseMove(fn func(MouseMove)) {
	w.mu.Lock()
	w.moveFns = append(w.moveFns, fn)
	w.mu.Unlock()
}
func (w *Window) OnScroll(fn func(Scroll)) {
	w.mu.Lock()
	w.scrollFns = append(w.scrollFns, fn)
	w.mu.Unlock()
}
func (w *Window) OnFormSubmit(fn func(FormSubmit)) {
	w.mu.Lock()
	w.formFns = append(w.formFns, fn)
	w.mu.Unlock()
}
func (w *Window) OnVideoProgress(fn func(VideoProgress)) {
	w.mu.Lock()
	w.videoFns = append(w.videoFns, fn)
	w.mu.Unlock()
}
func (w *Window) OnKeyPress(fn func(KeyPress)) {
	w.mu.Lock()
	w.keyFns = append(w.keyFns, fn)
	w.mu.Unlock()
}
func (w *Window) OnTouch(fn func(Touch)) {
	w.mu.Lock()
	w.touchFns = append(w.touchFns, fn)
	w.mu.Unlock()
}
func (w *Window) OnNavigate(fn func(Location)) {
	w.mu.Lock()
	w.navFns = append(w.navFns, fn)
	w.mu.Unlock()
}
func (w *Window) OnVisibilityChange(fn func(bool)) {
	w.mu.Lock()
	w.visFns = append(w.visFns, fn)
	w.mu.Unlock()
}
func (w *Window) OnUnload(fn func()) {
	w.mu.Lock()
	w.unloadFns = append(w.unloadFns, fn)
	w.mu.Unlock()
}
func (w *Window) OnMessage(fn func(Message)) {
	w.mu.Lock()
	w.msgFns = append(w.msgFns, fn)
	w.mu.Unlock()
}

// Event dispatch. Each entry point snapshots the listener slice under the
// lock and invokes outside it, so listeners may register further listeners
// or dispatch follow-up events without deadlocking.

func (w *Window) DispatchClick(c Click) {
	w.mu.Lock()
	fns := append([]func(Click){}, w.clickFns...)
	w.mu.Unlock()
	for _, fn := range fns {
		w.safely(func() { fn(c) })
	}
}

func (w *Window) DispatchMouseMove(m MouseMove) {
	w.mu.Lock()
	fns := append([]func(MouseMove){}, w.moveFns...)
	w.mu.Unlock()
	for _, fn := range fns {
		w.safely(func() { fn(m) })
	}
}

// DispatchScroll updates the scroll position and notifies listeners.
func (w *Window) DispatchScroll(s Scroll) {
	w.mu.Lock()
	w.scrollTop = s.Top
	w.scrollLeft = s.Left
	fns := append([]func(Scroll){}, w.scrollFns...)
	w.mu.Unlock()
	for _, fn := range fns {
		w.safely(func() { fn(s) })
	}
}

func (w *Window) DispatchFormSubmit(f FormSubmit) {
	w.mu.Lock()
	fns := append([]func(FormSubmit){}, w.formFns...)
	w.mu.Unlock()
	for _, fn := range fns {
		w.safely(func() { fn(f) })
	}
}

func (w *Window) DispatchVideoProgress(v VideoProgress) {
	w.mu.Lock()
	fns := append([]func(VideoProgress){}, w.videoFns...)
	w.mu.Unlock()
	for _, fn := range fns {
		w.safely(func() { fn(v) })
	}
}

func (w *Window) DispatchKeyPress(k KeyPress) {
	w.mu.Lock()
	fns := append([]func(KeyPress){}, w.keyFns...)
	w.mu.Unlock()
	for _, fn := range fns {
		w.safely(func() { fn(k) })
	}
}

func (w *Window) DispatchTouch(t Touch) {
	w.mu.Lock()
	fns := append([]func(Touch){}, w.touchFns...)
	w.mu.Unlock()
	for _, fn := range fns {
		w.safely(func() { fn(t) })
	}
}

// SetVisible flips page visibility and notifies listeners on change.
func (w *Window) SetVisible(visible bool) {
	w.mu.Lock()
	if w.visible == visible {
		w.mu.Unlock()
		return
	}
	w.visible = visible
	fns := append([]func(bool){}, w.visFns...)
	w.mu.Unlock()
	for _, fn := range fns {
		w.safely(func() { fn(visible) })
	}
}

// Unload fires unload listeners exactly once, synchronously.
func (w *Window) Unload() {
	w.mu.Lock()
	if w.unloaded {
		w.mu.Unlock()
		return
	}
	w.unloaded = true
	fns := append([]func(){}, w.unloadFns...)
	w.mu.Unlock()
	for _, fn := range fns {
		w.safely(fn)
	}
}

// PushState performs an SPA navigation to path, keeping the hostname. The
// navigation is broadcast even for same-path pushes; same-path deduping is
// the navigation watcher's job, so a single owner decides what counts as a
// page change.
func (w *Window) PushState(path, title string) {
	w.navigate(path, title)
}

// ReplaceState is PushState without history semantics; for tracking
// purposes the two are identical.
func (w *Window) ReplaceState(path, title string) {
	w.navigate(path, title)
}

// PopState models the back/forward buttons.
func (w *Window) PopState(path, title string) {
	w.navigate(path, title)
}

func (w *Window) navigate(path, title string) {
	w.mu.Lock()
	prev := w.loc
	w.loc.Referrer = prev.Href
	w.loc.Path = path
	w.loc.Title = title
	w.loc.Href = "https://" + w.loc.Hostname + path
	w.loc.Query = map[string]string{}
	w.scrollTop = 0
	w.scrollLeft = 0
	loc := w.loc
	fns := append([]func(Location){}, w.navFns...)
	w.mu.Unlock()
	for _, fn := range fns {
		w.safely(func() { fn(loc) })
	}
}

// ScrollTo moves the scroll position without dispatching a scroll
// interaction (programmatic scroll, used by the remote-control protocol).
func (w *Window) ScrollTo(left, top int) {
	w.mu.Lock()
	w.scrollLeft = left
	w.scrollTop = top
	w.mu.Unlock()
}

// Redirect records a client-side redirect request (location.href analog).
func (w *Window) Redirect(url string) {
	w.mu.Lock()
	w.redirects = append(w.redirects, url)
	w.mu.Unlock()
}

// Redirects returns every redirect requested so far.
func (w *Window) Redirects() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string{}, w.redirects...)
}

// PostToParent records an outbound cross-frame message.
func (w *Window) PostToParent(m Message) {
	w.mu.Lock()
	w.parentMsgs = append(w.parentMsgs, m)
	w.mu.Unlock()
}

// ParentMessages returns every message posted to the hosting frame.
func (w *Window) ParentMessages() []Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Message{}, w.parentMsgs...)
}

// ReceiveMessage delivers an inbound cross-frame message to listeners.
func (w *Window) ReceiveMessage(m Message) {
	w.mu.Lock()
	fns := append([]func(Message){}, w.msgFns...)
	w.mu.Unlock()
	for _, fn := range fns {
		w.safely(func() { fn(m) })
	}
}

// Inject places an automation UI artifact on the page.
func (w *Window) Inject(inj Injection) {
	w.mu.Lock()
	w.injections = append(w.injections, inj)
	w.mu.Unlock()
}

// Dismiss removes every injected artifact of the given kind.
func (w *Window) Dismiss(kind string) {
	w.mu.Lock()
	kept := w.injections[:0]
	for _, inj := range w.injections {
		if inj.Kind != kind {
			kept = append(kept, inj)
		}
	}
	w.injections = kept
	w.mu.Unlock()
}

// Injections returns the artifacts currently on the page.
func (w *Window) Injections() []Injection {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Injection{}, w.injections...)
}

func (w *Window) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.L().Error("page listener panicked", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}
