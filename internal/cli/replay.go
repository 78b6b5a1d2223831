package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	seentics "github.com/seentics/seentics-go"
	"github.com/seentics/seentics-go/internal/config"
	"github.com/seentics/seentics-go/internal/logging"
)

// Scenario is a recorded browsing session: one page context and an ordered
// list of interactions to drive through the client.
type Scenario struct {
	SiteID string         `yaml:"site_id"`
	Page   ScenarioPage   `yaml:"page"`
	Steps  []ScenarioStep `yaml:"steps"`
}

type ScenarioPage struct {
	Hostname       string            `yaml:"hostname"`
	Path           string            `yaml:"path"`
	Title          string            `yaml:"title"`
	Query          map[string]string `yaml:"query"`
	Referrer       string            `yaml:"referrer"`
	UserAgent      string            `yaml:"user_agent"`
	ViewportWidth  int               `yaml:"viewport_width"`
	ViewportHeight int               `yaml:"viewport_height"`
	DocumentWidth  int               `yaml:"document_width"`
	DocumentHeight int               `yaml:"document_height"`
}

// ScenarioStep holds exactly one action; the populated field decides which.
type ScenarioStep struct {
	Navigate  *NavigateStep `yaml:"navigate"`
	Click     *ClickStep    `yaml:"click"`
	MouseMove *MoveStep     `yaml:"mouse_move"`
	Scroll    *ScrollStep   `yaml:"scroll"`
	Track     *TrackStep    `yaml:"track"`
	Form      *FormStep     `yaml:"form"`
	Video     *VideoStep    `yaml:"video"`
	Key       string        `yaml:"key"`
	Wait      string        `yaml:"wait"`
	Flush     bool          `yaml:"flush"`
}

type NavigateStep struct {
	Path  string `yaml:"path"`
	Title string `yaml:"title"`
}

type ClickStep struct {
	Tag      string            `yaml:"tag"`
	ID       string            `yaml:"id"`
	Classes  []string          `yaml:"classes"`
	Text     string            `yaml:"text"`
	Href     string            `yaml:"href"`
	Type     string            `yaml:"type"`
	Attrs    map[string]string `yaml:"attrs"`
	Selector string            `yaml:"selector"`
	X        int               `yaml:"x"`
	Y        int               `yaml:"y"`
}

type MoveStep struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

type ScrollStep struct {
	Top  int `yaml:"top"`
	Left int `yaml:"left"`
}

type TrackStep struct {
	Name       string         `yaml:"name"`
	Properties map[string]any `yaml:"properties"`
}

type FormStep struct {
	ID     string          `yaml:"id"`
	Action string          `yaml:"action"`
	Fields []FormFieldStep `yaml:"fields"`
}

type FormFieldStep struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Value   string `yaml:"value"`
	Checked bool   `yaml:"checked"`
}

type VideoStep struct {
	Src      string  `yaml:"src"`
	Current  float64 `yaml:"current"`
	Duration float64 `yaml:"duration"`
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return &sc, nil
}

// RunScenario drives every step through the client in order.
func RunScenario(client *seentics.Client, sc *Scenario) error {
	for i, step := range sc.Steps {
		if err := runStep(client, step); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

func runStep(client *seentics.Client, step ScenarioStep) error {
	switch {
	case step.Navigate != nil:
		client.Navigate(step.Navigate.Path, step.Navigate.Title)
	case step.Click != nil:
		c := step.Click
		client.Click(seentics.Element{
			Tag:      c.Tag,
			ID:       c.ID,
			Classes:  c.Classes,
			Text:     c.Text,
			Href:     c.Href,
			Type:     c.Type,
			Attrs:    c.Attrs,
			Selector: c.Selector,
		}, c.X, c.Y)
	case step.MouseMove != nil:
		client.MouseMove(step.MouseMove.X, step.MouseMove.Y)
	case step.Scroll != nil:
		client.Scroll(step.Scroll.Top, step.Scroll.Left)
	case step.Track != nil:
		client.Track(step.Track.Name, step.Track.Properties)
	case step.Form != nil:
		fields := make([]seentics.FormField, len(step.Form.Fields))
		for i, f := range step.Form.Fields {
			fields[i] = seentics.FormField{Name: f.Name, Type: f.Type, Value: f.Value, Checked: f.Checked}
		}
		client.SubmitForm(step.Form.ID, step.Form.Action, fields)
	case step.Video != nil:
		client.VideoProgress(step.Video.Src, step.Video.Current, step.Video.Duration)
	case step.Key != "":
		client.KeyPress(step.Key)
	case step.Wait != "":
		d, err := time.ParseDuration(step.Wait)
		if err != nil {
			return fmt.Errorf("invalid wait %q: %w", step.Wait, err)
		}
		time.Sleep(d)
	case step.Flush:
		client.Flush()
	default:
		return fmt.Errorf("empty step")
	}
	return nil
}

var flagReplayHeatmaps bool

var replayCmd = &cobra.Command{
	Use:   "replay <scenario.yaml>",
	Short: "Replay a recorded browsing scenario through the client",
	Long: `Replay a recorded browsing scenario through the client.

The scenario file describes the page context and an ordered list of
interactions. The client boots against the configured API host, replays
every step, then drains its buffers and shuts down.

Example:
  seentics replay --site-id site_1 --api-host http://localhost:8090 session.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithOverrides(flagSiteID, flagAPIHost, flagDataDir)
		if err != nil {
			return err
		}

		sc, err := LoadScenario(args[0])
		if err != nil {
			return err
		}
		siteID := cfg.SiteID
		if sc.SiteID != "" {
			siteID = sc.SiteID
		}
		if siteID == "" || cfg.APIHost == "" {
			return fmt.Errorf("a site id and api host are required (flags, config, or scenario)")
		}

		client := seentics.New(seentics.Config{
			SiteID:         siteID,
			APIHost:        cfg.APIHost,
			Hostname:       sc.Page.Hostname,
			Path:           sc.Page.Path,
			Title:          sc.Page.Title,
			Query:          sc.Page.Query,
			Referrer:       sc.Page.Referrer,
			UserAgent:      sc.Page.UserAgent,
			ViewportWidth:  sc.Page.ViewportWidth,
			ViewportHeight: sc.Page.ViewportHeight,
			DocumentWidth:  sc.Page.DocumentWidth,
			DocumentHeight: sc.Page.DocumentHeight,
			DataDir:        cfg.DataDir,
			Heatmaps:       flagReplayHeatmaps || cfg.Heatmaps,
		})
		defer client.Shutdown()

		if err := RunScenario(client, sc); err != nil {
			return err
		}
		client.Flush()
		logging.L().Info("scenario replayed", "steps", len(sc.Steps))
		return nil
	},
}

func init() {
	replayCmd.Flags().BoolVar(&flagReplayHeatmaps, "heatmaps", false, "enable heatmap recording during replay")
}
