package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"composeim/internal/config"
	"composeim/internal/store"
)

type statsReport struct {
	Outcomes  map[string]int64 `json:"outcomes"`
	Top       []store.Usage    `json:"top"`
	Recent    []store.Run      `json:"recent,omitempty"`
	Snapshots []store.Snapshot `json:"snapshots,omitempty"`
}

func newStatsCmd(a *app) *cobra.Command {
	var (
		limit  int
		recent int
		format string
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show compose usage statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStatsStore()
			if err != nil {
				return err
			}
			defer st.Close()

			report, err := collectStats(st, limit, recent)
			if err != nil {
				return err
			}
			switch format {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			case "table":
				renderStats(cmd.OutOrStdout(), report)
				return nil
			default:
				return fmt.Errorf("unknown format %q (valid: table, json)", format)
			}
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of top sequences")
	cmd.Flags().IntVar(&recent, "recent", 0, "also list the most recent runs")
	cmd.Flags().StringVarP(&format, "output", "o", "table", "output format: table or json")
	cmd.AddCommand(newStatsPruneCmd(a), newStatsSchemaCmd(a))
	return cmd
}

func newStatsPruneCmd(a *app) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete recorded runs older than --days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return fmt.Errorf("--days must not be negative")
			}
			st, err := a.openStatsStore()
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.Prune(time.Now().AddDate(0, 0, -days))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d runs.\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "keep runs newer than this many days")
	return cmd
}

func newStatsSchemaCmd(a *app) *cobra.Command {
	var (
		rollback bool
		format   string
	)
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show or roll back the statistics schema version",
		Long: `Lists applied and pending migrations of the statistics database.
With --rollback the newest migration is undone first; the daemon reapplies
it on its next start.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "table" && format != "json" {
				return fmt.Errorf("unknown format %q (valid: table, json)", format)
			}
			st, err := a.openStatsStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if rollback {
				if err := store.RollbackMigration(st.DB()); err != nil {
					return err
				}
			} else if err := store.ValidateSchema(st.DB()); err != nil {
				return err
			}
			status, err := store.GetMigrationStatus(st.DB())
			if err != nil {
				return err
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}
			renderSchema(cmd.OutOrStdout(), status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&rollback, "rollback", false, "undo the newest applied migration")
	cmd.Flags().StringVarP(&format, "output", "o", "table", "output format: table or json")
	return cmd
}

func renderSchema(w io.Writer, status *store.MigrationStatus) {
	t := newTable(w)
	t.SetTitle(fmt.Sprintf("Schema version %d of %d", status.CurrentVersion, status.LatestVersion))
	t.AppendHeader(table.Row{"Version", "Description", "Applied"})
	for _, m := range status.Applied {
		t.AppendRow(table.Row{m.Version, m.Description, m.AppliedAt.Format(time.DateTime)})
	}
	for _, m := range status.Pending {
		t.AppendRow(table.Row{m.Version, m.Description, "pending"})
	}
	t.Render()
}

func (a *app) openStatsStore() (*store.Store, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.Stats.Path); os.IsNotExist(err) {
		return nil, fmt.Errorf("no statistics recorded yet (%s)", cfg.Stats.Path)
	}
	return store.Open(cfg.Stats.Path)
}

func collectStats(st *store.Store, limit, recent int) (*statsReport, error) {
	outcomes, err := st.OutcomeCounts()
	if err != nil {
		return nil, err
	}
	top, err := st.TopSequences(limit)
	if err != nil {
		return nil, err
	}
	report := &statsReport{Outcomes: outcomes, Top: top}

	if recent > 0 {
		if report.Recent, err = st.RecentRuns(recent); err != nil {
			return nil, err
		}
	}
	for _, backend := range []string{config.BackendWayland, config.BackendIBus} {
		snap, err := st.LatestSnapshot(backend)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			report.Snapshots = append(report.Snapshots, *snap)
		}
	}
	return report, nil
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	return t
}

func renderStats(w io.Writer, r *statsReport) {
	outcomes := make([]string, 0, len(r.Outcomes))
	for o := range r.Outcomes {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)

	t := newTable(w)
	t.SetTitle("Outcomes")
	t.AppendHeader(table.Row{"Outcome", "Runs"})
	for _, o := range outcomes {
		t.AppendRow(table.Row{o, r.Outcomes[o]})
	}
	t.Render()
	fmt.Fprintln(w)

	t = newTable(w)
	t.SetTitle("Top sequences")
	t.AppendHeader(table.Row{"Sequence", "Output", "Count", "Last used"})
	for _, u := range r.Top {
		t.AppendRow(table.Row{u.Sequence, u.Output, u.Count, u.LastUsed.Format(time.DateTime)})
	}
	t.Render()

	if len(r.Recent) > 0 {
		fmt.Fprintln(w)
		t = newTable(w)
		t.SetTitle("Recent runs")
		t.AppendHeader(table.Row{"Time", "Sequence", "Outcome", "Output"})
		for _, run := range r.Recent {
			t.AppendRow(table.Row{time.Unix(0, run.TimestampNs).Format(time.DateTime), run.Sequence, run.Outcome, run.Output})
		}
		t.Render()
	}

	for _, snap := range r.Snapshots {
		fmt.Fprintln(w)
		s := snap.Stats
		t = newTable(w)
		t.SetTitle(fmt.Sprintf("Last %s session (%s)", snap.Backend, time.Unix(0, snap.TimestampNs).Format(time.DateTime)))
		t.AppendHeader(table.Row{"Activations", "Keys", "Commits", "Composed", "Unmatched", "Overflows", "Stray"})
		t.AppendRow(table.Row{s.Activations, s.Keys, s.Commits, s.Composed, s.Unmatched, s.Overflows, s.Stray})
		t.Render()
	}
}
