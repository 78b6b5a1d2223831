package cli

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/seentics/seentics-go/internal/config"
)

type checkResult struct {
	name string
	ok   bool
	note string
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose client configuration and connectivity",
	Long: `Diagnose client configuration and connectivity.

Checks that a site id and API host are configured, that the API host is
reachable, and that the data directory is writable. Exits non-zero when
any check fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithOverrides(flagSiteID, flagAPIHost, flagDataDir)
		if err != nil {
			return err
		}

		results := []checkResult{
			checkSiteID(cfg),
			checkAPIHost(cfg),
			checkDataDir(cfg),
		}

		failed := 0
		for _, r := range results {
			mark := "ok"
			if !r.ok {
				mark = "FAIL"
				failed++
			}
			fmt.Printf("%-12s %-6s %s\n", r.name, mark, r.note)
		}
		if failed > 0 {
			return fmt.Errorf("%d check(s) failed", failed)
		}
		return nil
	},
}

func checkSiteID(cfg *config.Config) checkResult {
	if cfg.SiteID == "" {
		return checkResult{name: "site id", note: "not configured (flag, seentics.toml, or SEENTICS_SITE_ID)"}
	}
	return checkResult{name: "site id", ok: true, note: cfg.SiteID}
}

func checkAPIHost(cfg *config.Config) checkResult {
	if cfg.APIHost == "" {
		return checkResult{name: "api host", note: "not configured (flag, seentics.toml, or SEENTICS_API_HOST)"}
	}
	normalized, err := config.SanitizeAPIHost(cfg.APIHost)
	if err != nil {
		return checkResult{name: "api host", note: err.Error()}
	}

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(normalized + "/health")
	if err != nil {
		return checkResult{name: "api host", note: fmt.Sprintf("%s unreachable: %v", normalized, err)}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 500 {
		return checkResult{name: "api host", note: fmt.Sprintf("%s unhealthy: status %d", normalized, resp.StatusCode)}
	}
	return checkResult{name: "api host", ok: true, note: normalized}
}

func checkDataDir(cfg *config.Config) checkResult {
	if cfg.DataDir == "" {
		return checkResult{name: "data dir", ok: true, note: "unset, identity will not survive restarts"}
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return checkResult{name: "data dir", note: fmt.Sprintf("cannot create %s: %v", cfg.DataDir, err)}
	}
	probe := filepath.Join(cfg.DataDir, ".seentics_write_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return checkResult{name: "data dir", note: fmt.Sprintf("%s not writable: %v", cfg.DataDir, err)}
	}
	_ = os.Remove(probe)
	return checkResult{name: "data dir", ok: true, note: cfg.DataDir}
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}
