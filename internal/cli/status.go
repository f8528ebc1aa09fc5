package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/healer/internal/core/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the retry queue status of a running healer",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	url := fmt.Sprintf("http://localhost:%d/v1/queue/status", cfg.Server.Port)

	resp, err := client.Get(url)
	if err != nil {
		slog.Error("Failed to reach healer", "url", url, "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var snap struct {
		Queued     int `json:"queued"`
		Running    int `json:"running"`
		DeadRecent int `json:"dead_recent"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		slog.Error("Failed to decode status response", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "QUEUED\tRUNNING\tDEAD (10m)")
	_, _ = fmt.Fprintf(w, "%d\t%d\t%d\n", snap.Queued, snap.Running, snap.DeadRecent)
	_ = w.Flush()
}
