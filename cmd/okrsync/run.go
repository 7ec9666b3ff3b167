package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/okrsync/internal/config"
	"github.com/MikeSquared-Agency/okrsync/internal/initiative"
)

type runFlags struct {
	CSV    string
	Say    []string
	Export string
	JSON   bool
}

func runCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest a CSV, apply chat updates and print the snapshot",
		Example: `  okrsync run --csv initiatives.csv
  okrsync run --csv initiatives.csv --say "I1 is blocked waiting on legal" --export out.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			setupLogging(cfg.LogLevel, cmd.ErrOrStderr())
			return runOnce(cmd.Context(), cfg, f, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&f.CSV, "csv", "", "CSV file to ingest")
	cmd.Flags().StringArrayVar(&f.Say, "say", nil, "chat update to apply after ingest (repeatable)")
	cmd.Flags().StringVar(&f.Export, "export", "", "write the final snapshot as CSV to this file")
	cmd.Flags().BoolVar(&f.JSON, "json", false, "print the snapshot as JSON instead of a table")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}

func runOnce(ctx context.Context, cfg config.Config, f runFlags, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	raw, err := os.ReadFile(f.CSV)
	if err != nil {
		return fmt.Errorf("read csv: %w", err)
	}

	a, err := buildApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(f.Say) > 0 {
		if err := a.pipeline.Start(ctx); err != nil {
			return fmt.Errorf("start update agent: %w", err)
		}
	}

	if _, err := a.pipeline.Ingest(ctx, string(raw)); err != nil {
		return err
	}

	for _, utterance := range f.Say {
		reply, err := a.pipeline.Converse(ctx, utterance)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "> %s\n%s\n\n", utterance, reply)
	}

	items := a.pipeline.Snapshot()
	if f.Export != "" {
		csv, err := a.pipeline.Export()
		if err != nil {
			return err
		}
		if err := os.WriteFile(f.Export, []byte(csv), 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
	}

	if f.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	renderTable(out, items)
	return nil
}

func renderTable(out io.Writer, items []initiative.Initiative) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.AppendHeader(table.Row{"ID/Name", "Owner", "Status", "Progress", "Due", "Related OKR", "Blockers"})
	for _, it := range items {
		tw.AppendRow(table.Row{
			it.Identity(),
			it.Owner,
			it.Status.Label(),
			it.Progress.String() + "%",
			it.DueDate,
			it.RelatedOKR,
			it.Blockers,
		})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "", "Total", len(items)})
	tw.Render()
}
