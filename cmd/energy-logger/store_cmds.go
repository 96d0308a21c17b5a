package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cetendo/EnergyLogger/internal/adapters/observability"
	"github.com/Cetendo/EnergyLogger/internal/adapters/store"
	"github.com/Cetendo/EnergyLogger/internal/app/config"
	"github.com/Cetendo/EnergyLogger/internal/domain"
	"github.com/Cetendo/EnergyLogger/pkg/energylogger"
)

func openStore(ctx context.Context, cfg *config.Config) (*store.SQLStore, error) {
	st, err := store.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func newLatestCmd(g *globalFlags) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "latest [category]",
		Short: "Show the newest stored readings",
		Long: `Show the newest rows of one table or of every table.

The category may be a table name (temperaturen) or its alias
(Temperaturen, Energiemonitor_Waermemenge).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			var category string
			if len(args) == 1 {
				category = args[0]
			}
			latest, err := st.Latest(cmd.Context(), category, limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(latest)
			}
			return printLatest(cmd.OutOrStdout(), latest)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Rows per table")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func printLatest(w io.Writer, latest map[string][]domain.Row) error {
	tables := make([]string, 0, len(latest))
	for _, t := range domain.TableNames() {
		if _, ok := latest[t]; ok {
			tables = append(tables, t)
		}
	}

	for _, table := range tables {
		schema, _ := domain.LookupTable(table)
		rows := latest[table]
		fmt.Fprintf(w, "== %s (%d rows)\n", table, len(rows))
		if len(rows) == 0 {
			continue
		}

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		header := []string{"id", "time"}
		for _, c := range schema.Columns {
			header = append(header, c.Name)
		}
		fmt.Fprintln(tw, strings.Join(header, "\t"))

		for _, r := range rows {
			cells := []string{
				fmt.Sprint(r.ID),
				time.Unix(r.Timestamp, 0).Format(time.RFC3339),
			}
			for _, c := range schema.Columns {
				cells = append(cells, formatCell(r.Values[c.Name]))
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}

func newPurgeCmd(g *globalFlags) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete rows older than the retention horizon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			horizon := cfg.Storage.Retention
			if cmd.Flags().Changed("older-than") {
				horizon = olderThan
			}

			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.PurgeOlderThan(cmd.Context(), horizon)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d rows older than %s\n", n, horizon)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Retention horizon (default: storage.retention)")
	return cmd
}

func newImportCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Store snapshots from saved content documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			pub, err := energylogger.NewExternalPublisher(cfg.HeatPump.ImportValues, st, observability.Nop{})
			if err != nil {
				return err
			}

			for _, path := range args {
				raw, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				res, err := pub.Publish(cmd.Context(), raw)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d categories\n", path, res.Categories)
			}
			return nil
		},
	}
}

func printTableStats(w io.Writer, stats []domain.TableStats) error {
	sorted := append([]domain.TableStats(nil), stats...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rows > sorted[j].Rows })

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "table\trows")
	var total int64
	for _, s := range sorted {
		fmt.Fprintf(tw, "%s\t%d\n", s.Table, s.Rows)
		total += s.Rows
	}
	fmt.Fprintf(tw, "total\t%d\n", total)
	return tw.Flush()
}
