package sink

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seentics/seentics-go/internal/core"
)

func newTestSink(t *testing.T, fixtures *Fixtures) *Sink {
	t.Helper()
	return New(fixtures, zap.NewNop())
}

func post(t *testing.T, s *Sink, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	return resp
}

func get(t *testing.T, s *Sink, path string, out any) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestEventBatchAggregation(t *testing.T) {
	s := newTestSink(t, nil)

	resp := post(t, s, "/api/v1/analytics/event/batch", map[string]any{
		"siteId": "site_1",
		"events": []core.Event{
			{EventType: "pageview", Page: "/", VisitorID: "vis_a", SessionID: "ses_a"},
			{EventType: "pageview", Page: "/pricing", VisitorID: "vis_a", SessionID: "ses_a"},
			{EventType: "custom", EventName: "signup", Page: "/pricing", VisitorID: "vis_b", SessionID: "ses_b"},
		},
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var stats map[string]any
	get(t, s, "/debug/stats", &stats)
	assert.EqualValues(t, 3, stats["events_total"])
	assert.EqualValues(t, 2, stats["unique_visitors"])
	byType := stats["events_by_type"].(map[string]any)
	assert.EqualValues(t, 2, byType["pageview"])
	assert.EqualValues(t, 1, byType["custom"])
}

func TestEventBatchRequiresSiteID(t *testing.T) {
	s := newTestSink(t, nil)
	resp := post(t, s, "/api/v1/analytics/event/batch", map[string]any{
		"events": []core.Event{{EventType: "pageview", Page: "/"}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, s.Store().Events())
}

func TestFixturesServedToClients(t *testing.T) {
	fx := &Fixtures{
		Goals:   []GoalFixture{{ID: "g1", Name: "CTA", Selector: "#cta"}},
		Funnels: []FunnelFixture{{ID: "fn_1", Name: "Checkout"}},
		Workflows: []WorkflowFixture{
			{ID: "wf_1", Name: "Welcome", Status: "active"},
		},
	}
	s := newTestSink(t, fx)

	var cfg struct {
		Goals []GoalFixture `json:"goals"`
	}
	get(t, s, "/api/v1/tracker/config/site_1", &cfg)
	require.Len(t, cfg.Goals, 1)
	assert.Equal(t, "#cta", cfg.Goals[0].Selector)

	var funnels struct {
		Funnels []FunnelFixture `json:"funnels"`
	}
	resp := get(t, s, "/api/v1/funnels/active?siteId=site_1", &funnels)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, funnels.Funnels, 1)

	resp = get(t, s, "/api/v1/funnels/active", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "siteId is mandatory")

	var workflows struct {
		Workflows []WorkflowFixture `json:"workflows"`
	}
	get(t, s, "/api/v1/workflows/site/site_1/active", &workflows)
	require.Len(t, workflows.Workflows, 1)
	assert.Equal(t, "Welcome", workflows.Workflows[0].Name)
}

func TestFunnelAndHeatmapAndExecutionIntake(t *testing.T) {
	s := newTestSink(t, nil)

	post(t, s, "/api/v1/funnels/track", FunnelEvent{FunnelID: "fn_1", EventType: "started", Step: 0})
	post(t, s, "/api/v1/funnels/batch", funnelBatch{SiteID: "site_1", Events: []FunnelEvent{
		{FunnelID: "fn_1", EventType: "progress", Step: 1},
		{FunnelID: "fn_1", EventType: "conversion", Step: 2},
	}})
	post(t, s, "/api/v1/heatmaps/record", heatmapRecord{WebsiteID: "site_1", Points: []HeatmapPoint{
		{Type: "click", X: 500, Y: 320, URL: "https://shop.example.com/"},
	}})
	post(t, s, "/api/v1/workflows/execution/action", Execution{WorkflowID: "wf_1", NodeID: "a1", ActionType: "Show Modal"})

	var stats map[string]any
	get(t, s, "/debug/stats", &stats)
	assert.EqualValues(t, 3, stats["funnel_events"])
	assert.EqualValues(t, 1, stats["heatmap_points"])
	assert.EqualValues(t, 1, stats["action_executions"])

	breakdown := stats["funnel_breakdown"].(map[string]any)["fn_1"].(map[string]any)
	assert.EqualValues(t, 1, breakdown["started"])
	assert.EqualValues(t, 1, breakdown["conversion"])
}

func TestLoadFixturesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
goals:
  - id: g1
    name: CTA
    selector: "#cta"
funnels:
  - id: fn_1
    name: Checkout
    steps:
      - order: 0
        step_type: page_view
        match_type: exact
        page_path: /cart
        name: Cart
workflows:
  - id: wf_1
    name: Welcome
    status: active
    min_version: "1.0"
    nodes:
      - id: t1
        data:
          type: Trigger
          title: Page View
      - id: a1
        data:
          type: Action
          title: Show Modal
          settings:
            html: "<p>hi</p>"
            frequency: once_per_session
    edges:
      - source: t1
        target: a1
`), 0o644))

	fx, err := LoadFixtures(path)
	require.NoError(t, err)
	require.Len(t, fx.Goals, 1)
	require.Len(t, fx.Funnels, 1)
	assert.Equal(t, "/cart", fx.Funnels[0].Steps[0].PagePath)
	require.Len(t, fx.Workflows, 1)
	require.Len(t, fx.Workflows[0].Nodes, 2)
	assert.Equal(t, "Show Modal", fx.Workflows[0].Nodes[1].Data.Title)
	assert.Equal(t, "once_per_session", fx.Workflows[0].Nodes[1].Data.Settings["frequency"])

	_, err = LoadFixtures(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	empty, err := LoadFixtures("")
	require.NoError(t, err)
	assert.Empty(t, empty.Goals)
}
