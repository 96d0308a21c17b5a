package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cetendo/EnergyLogger/internal/ports"
)

func newStatsCmd(g *globalFlags) *cobra.Command {
	var (
		metricsURL string
		interval   time.Duration
		count      int
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show table row counts, or poll a running logger's metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if metricsURL != "" {
				return pollMetrics(cmd, metricsURL, interval, count)
			}

			cfg, err := g.load()
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printTableStats(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().StringVar(&metricsURL, "metrics-url", "", "Prometheus endpoint of a running logger, e.g. http://localhost:9100/metrics")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Refresh interval with --metrics-url")
	cmd.Flags().IntVar(&count, "count", 0, "Stop after this many polls (0 polls until interrupted)")
	return cmd
}

func pollMetrics(cmd *cobra.Command, url string, interval time.Duration, count int) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Streaming metrics from %s (Ctrl+C to stop)\n", url)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for polled := 0; count == 0 || polled < count; polled++ {
		if err := printMetricsSnapshot(ctx, out, url); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "stats error: %v\n", err)
		}
		if count != 0 && polled+1 >= count {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

var watchedMetrics = []string{
	ports.MetricSnapshotsSaved,
	ports.MetricSaveFailures,
	ports.MetricMessagesDropped,
	ports.MetricSessionState,
	ports.MetricLastSnapshot,
}

func printMetricsSnapshot(ctx context.Context, w io.Writer, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	targets := make(map[string]float64, len(watchedMetrics))
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, key := range watchedMetrics {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %g", &value); err == nil {
					targets[key] = value
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	last := "never"
	if ts := targets[ports.MetricLastSnapshot]; ts > 0 {
		last = time.Unix(int64(ts), 0).Format(time.RFC3339)
	}
	fmt.Fprintf(w, "[%s] snapshots=%.0f failures=%.0f dropped=%.0f state=%.0f last=%s\n",
		time.Now().Format(time.RFC3339),
		targets[ports.MetricSnapshotsSaved],
		targets[ports.MetricSaveFailures],
		targets[ports.MetricMessagesDropped],
		targets[ports.MetricSessionState],
		last,
	)
	return nil
}
