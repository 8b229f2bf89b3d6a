package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"schema-drift-monitor/internal/models"
)

func newCheckCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "check [table...]",
		Short: "Detect drift against the latest snapshots and reconcile it",
		Long: "Checks the named tables, or every configured table when none are given. " +
			"Exits non-zero when any table check fails.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withMonitor(cmd, func(ctx context.Context, m Monitor) error {
				var results []models.CheckResult
				if len(args) == 0 {
					results = m.CheckAll(ctx)
				} else {
					for _, table := range args {
						result, err := m.CheckTable(ctx, table)
						if err != nil {
							rt.logger.Error("table check failed", "table", table, "error", err)
						}
						results = append(results, result)
					}
				}

				if err := rt.printResults(cmd, results); err != nil {
					return err
				}

				failed := 0
				for _, r := range results {
					if r.Outcome == models.OutcomeFailed {
						failed++
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d table checks failed", failed, len(results))
				}
				return nil
			})
		},
	}
}

func (rt *runtime) printResults(cmd *cobra.Command, results []models.CheckResult) error {
	if rt.output == "json" {
		return rt.printJSON(cmd.OutOrStdout(), results)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tOUTCOME\tDETECTED\tAPPLIED\tSKIPPED\tREASON")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n", r.TableName, r.Outcome, r.Detected, r.Applied, r.Skipped, r.Reason)
	}
	return tw.Flush()
}

func newSnapshotCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot <table>...",
		Short: "Capture the live schema of tables as their newest snapshot",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withMonitor(cmd, func(ctx context.Context, m Monitor) error {
				var schemas []*models.TableSchema
				for _, table := range args {
					schema, err := m.TakeSnapshot(ctx, table)
					if err != nil {
						return err
					}
					schemas = append(schemas, schema)
				}

				if rt.output == "json" {
					return rt.printJSON(cmd.OutOrStdout(), schemas)
				}
				for _, s := range schemas {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d columns captured\n", s.TableName, len(s.Columns))
				}
				return nil
			})
		},
	}
}

func newDiffCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <table>",
		Short: "Show changes between the latest snapshot and the live schema without applying them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withMonitor(cmd, func(ctx context.Context, m Monitor) error {
				changes, err := m.PendingChanges(ctx, args[0])
				if err != nil {
					return err
				}

				if rt.output == "json" {
					docs := make([]json.RawMessage, 0, len(changes))
					for _, c := range changes {
						data, err := models.MarshalChange(c)
						if err != nil {
							return err
						}
						docs = append(docs, data)
					}
					return rt.printJSON(cmd.OutOrStdout(), docs)
				}

				if len(changes) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: no changes\n", args[0])
					return nil
				}
				for _, c := range changes {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.Kind(), describeChange(c))
				}
				return nil
			})
		},
	}
}

func describeChange(c models.Change) string {
	switch v := c.(type) {
	case models.ColumnAdded:
		s := v.ColumnName + " " + v.DataType
		if !v.IsNullable {
			s += " NOT NULL"
		}
		if v.Default != nil {
			s += " DEFAULT " + *v.Default
		}
		return s
	case models.ColumnModified:
		return fmt.Sprintf("%s %s -> %s", v.ColumnName, v.OldType, v.NewType)
	default:
		return c.Column()
	}
}

func newMigrateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the snapshot and change-log tables of the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := rt.migrate(ctx, rt.cfg, rt.logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "store %q is up to date\n", rt.cfg.Store.Backend)
			return nil
		},
	}
}
