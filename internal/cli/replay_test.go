package cli

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	seentics "github.com/seentics/seentics-go"
)

const scenarioYAML = `
site_id: site_1
page:
  hostname: shop.example.com
  path: /
  title: Home
  viewport_width: 1280
  viewport_height: 800
  document_width: 1280
  document_height: 3000
steps:
  - navigate:
      path: /pricing
      title: Pricing
  - click:
      tag: a
      id: buy
      text: Buy now
      href: /checkout
      x: 640
      y: 420
  - scroll:
      top: 2200
  - track:
      name: plan_selected
      properties:
        plan: pro
  - form:
      id: signup
      action: /signup
      fields:
        - name: email
          type: text
          value: a@b.com
        - name: password
          type: password
          value: hunter2
  - flush: true
`

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioYAML), 0o644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "site_1", sc.SiteID)
	assert.Equal(t, "shop.example.com", sc.Page.Hostname)
	require.Len(t, sc.Steps, 6)
	assert.Equal(t, "/pricing", sc.Steps[0].Navigate.Path)
	assert.Equal(t, "plan_selected", sc.Steps[3].Track.Name)
	assert.True(t, sc.Steps[5].Flush)

	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRunScenarioDrivesTheClient(t *testing.T) {
	var mu sync.Mutex
	var events []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/api/v1/analytics/event/batch" {
			body, _ := io.ReadAll(req.Body)
			var payload struct {
				Events []map[string]any `json:"events"`
			}
			if err := json.Unmarshal(body, &payload); err == nil {
				mu.Lock()
				events = append(events, payload.Events...)
				mu.Unlock()
			}
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(server.Close)

	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioYAML), 0o644))
	sc, err := LoadScenario(path)
	require.NoError(t, err)

	client := seentics.New(seentics.Config{
		SiteID:         sc.SiteID,
		APIHost:        server.URL,
		Hostname:       sc.Page.Hostname,
		Path:           sc.Page.Path,
		Title:          sc.Page.Title,
		ViewportWidth:  sc.Page.ViewportWidth,
		ViewportHeight: sc.Page.ViewportHeight,
		DocumentWidth:  sc.Page.DocumentWidth,
		DocumentHeight: sc.Page.DocumentHeight,
	})
	t.Cleanup(client.Shutdown)

	require.NoError(t, RunScenario(client, sc))
	client.Flush()

	mu.Lock()
	defer mu.Unlock()
	byType := make(map[string]int)
	for _, ev := range events {
		byType[ev["event_type"].(string)]++
	}
	assert.Equal(t, 2, byType["pageview"], "boot page plus one navigation")
	assert.Equal(t, 1, byType["custom"])
	assert.Equal(t, 1, byType["click"], "high-value link click tracked")
	assert.Equal(t, 1, byType["form_submission"])
	assert.GreaterOrEqual(t, byType["scroll_depth"], 1, "deep scroll crosses a milestone")

	raw, _ := json.Marshal(events)
	assert.NotContains(t, string(raw), "hunter2", "password never leaves the client")
}

func TestRunScenarioRejectsEmptyStep(t *testing.T) {
	client := seentics.New(seentics.Config{})
	err := RunScenario(client, &Scenario{Steps: []ScenarioStep{{}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty step")
}
