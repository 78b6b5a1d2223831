// Package seentics is the embeddable analytics client. An application
// creates one Client per logical page, feeds it interaction events, and
// the client batches analytics, drives funnels and behavior automations,
// and optionally records heatmap coordinates against a Seentics
// collection API.
package seentics

import (
	"time"

	"github.com/seentics/seentics-go/internal/heatmap"
	"github.com/seentics/seentics-go/internal/logging"
	"github.com/seentics/seentics-go/internal/page"
	"github.com/seentics/seentics-go/internal/pipeline"
)

// Version is the client version reported to min-version gates.
const Version = "1.0.0"

// Config configures a Client. SiteID and APIHost are required; everything
// else has a workable default.
type Config struct {
	SiteID  string
	APIHost string

	// Initial page state.
	Hostname string
	Path     string
	Title    string
	Query    map[string]string
	Referrer string

	// Environment the events are attributed to.
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	DocumentWidth  int
	DocumentHeight int
	Embedded       bool

	// DataDir persists visitor identity across restarts.
	DataDir string

	// Delivery tuning. Zero values take the defaults.
	FlushInterval time.Duration
	MaxBatch      int

	// Heatmaps enables coordinate recording; HeatmapTuning overrides the
	// default sampling and delivery knobs.
	Heatmaps      bool
	HeatmapTuning *HeatmapConfig
}

// HeatmapConfig tunes heatmap sampling and delivery.
type HeatmapConfig = heatmap.Config

// Element describes an interacted page element.
type Element struct {
	Tag      string
	ID       string
	Classes  []string
	Text     string
	Href     string
	Type     string
	Attrs    map[string]string
	InForm   bool
	Selector string
}

// FormField is one input captured at submit time.
type FormField struct {
	Name    string
	Type    string
	Value   string
	Checked bool
}

// Client is one booted tracking stack. A misconfigured client degrades to
// a no-op: tracking must never break the embedding application.
type Client struct {
	enabled bool
	win     *page.Window
	pipe    *pipeline.Pipeline
}

// New builds and boots a client. It never fails; a missing SiteID or
// APIHost is logged and yields a disabled client whose methods all no-op.
func New(cfg Config) *Client {
	if cfg.SiteID == "" || cfg.APIHost == "" {
		logging.L().Warn("tracking disabled: SiteID and APIHost are required")
		return &Client{}
	}

	var opts []page.Option
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		opts = append(opts, page.WithViewport(cfg.ViewportWidth, cfg.ViewportHeight))
	}
	if cfg.DocumentWidth > 0 && cfg.DocumentHeight > 0 {
		opts = append(opts, page.WithDocumentSize(cfg.DocumentWidth, cfg.DocumentHeight))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, page.WithUserAgent(cfg.UserAgent))
	}
	if cfg.Embedded {
		opts = append(opts, page.WithEmbedded())
	}

	win := page.NewWindow(page.Location{
		Hostname: cfg.Hostname,
		Path:     cfg.Path,
		Title:    cfg.Title,
		Query:    cfg.Query,
		Referrer: cfg.Referrer,
	}, opts...)

	pipe := pipeline.Boot(pipeline.Options{
		SiteID:        cfg.SiteID,
		APIHost:       cfg.APIHost,
		Window:        win,
		Version:       Version,
		DataDir:       cfg.DataDir,
		FlushInterval: cfg.FlushInterval,
		MaxBatch:      cfg.MaxBatch,
		Heatmaps:      cfg.Heatmaps,
		HeatmapConfig: cfg.HeatmapTuning,
	})

	return &Client{enabled: true, win: win, pipe: pipe}
}

// Enabled reports whether the client is actually tracking.
func (c *Client) Enabled() bool { return c.enabled }

// Track records a custom event with optional properties.
func (c *Client) Track(name string, properties map[string]any) {
	if !c.enabled {
		return
	}
	c.pipe.Analytics.Track(name, properties)
}

// Identify attaches traits (plan, account type, and the like) to the
// visitor as an identify event.
func (c *Client) Identify(traits map[string]any) {
	if !c.enabled {
		return
	}
	c.pipe.Analytics.Identify(traits)
}

// VisitorID returns the durable visitor identifier, or "" when disabled.
func (c *Client) VisitorID() string {
	if !c.enabled {
		return ""
	}
	return c.pipe.VisitorID()
}

// SessionID returns the current session identifier, or "" when disabled.
func (c *Client) SessionID() string {
	if !c.enabled {
		return ""
	}
	return c.pipe.SessionID()
}

// Navigate performs an in-page navigation (pushState analog). Same-path
// navigations are collapsed and do not restart the page view.
func (c *Client) Navigate(path, title string) {
	if !c.enabled {
		return
	}
	c.win.PushState(path, title)
}

// Click reports a pointer interaction with an element.
func (c *Client) Click(el Element, x, y int) {
	if !c.enabled {
		return
	}
	c.win.DispatchClick(page.Click{Target: toPageElement(el), X: x, Y: y})
}

// MouseMove reports a raw pointer position sample.
func (c *Client) MouseMove(x, y int) {
	if !c.enabled {
		return
	}
	c.win.DispatchMouseMove(page.MouseMove{X: x, Y: y})
}

// Scroll reports new scroll offsets.
func (c *Client) Scroll(top, left int) {
	if !c.enabled {
		return
	}
	c.win.DispatchScroll(page.Scroll{Top: top, Left: left})
}

// SubmitForm reports a form submission. Sensitive fields are redacted
// before anything leaves the process.
func (c *Client) SubmitForm(formID, action string, fields []FormField) {
	if !c.enabled {
		return
	}
	converted := make([]page.FormField, len(fields))
	for i, f := range fields {
		converted[i] = page.FormField{Name: f.Name, Type: f.Type, Value: f.Value, Checked: f.Checked}
	}
	c.win.DispatchFormSubmit(page.FormSubmit{FormID: formID, Action: action, Fields: converted})
}

// VideoProgress reports media playback position.
func (c *Client) VideoProgress(src string, currentTime, duration float64) {
	if !c.enabled {
		return
	}
	c.win.DispatchVideoProgress(page.VideoProgress{Src: src, CurrentTime: currentTime, Duration: duration})
}

// KeyPress reports a key interaction (session liveness only).
func (c *Client) KeyPress(key string) {
	if !c.enabled {
		return
	}
	c.win.DispatchKeyPress(page.KeyPress{Key: key})
}

// Touch reports a touch interaction (session liveness only).
func (c *Client) Touch(x, y int) {
	if !c.enabled {
		return
	}
	c.win.DispatchTouch(page.Touch{X: x, Y: y})
}

// SetVisible reports page visibility changes.
func (c *Client) SetVisible(visible bool) {
	if !c.enabled {
		return
	}
	c.win.SetVisible(visible)
}

// Flush forces buffered analytics out immediately.
func (c *Client) Flush() {
	if !c.enabled {
		return
	}
	c.pipe.Flush()
}

// Shutdown unloads the page, drains buffers through the beacon path, and
// stops background work. Idempotent.
func (c *Client) Shutdown() {
	if !c.enabled {
		return
	}
	c.pipe.Shutdown()
}

func toPageElement(el Element) page.Element {
	return page.Element{
		Tag:      el.Tag,
		ID:       el.ID,
		Classes:  el.Classes,
		Text:     el.Text,
		Href:     el.Href,
		TypeAttr: el.Type,
		Attrs:    el.Attrs,
		InForm:   el.InForm,
		Selector: el.Selector,
	}
}
