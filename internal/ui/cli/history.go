package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"j2k/internal/core/ports"
	"j2k/internal/data/history"
)

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded conversion runs",
	}
	cmd.AddCommand(
		newHistoryListCmd(opts),
		newHistoryShowCmd(opts),
		newHistoryDiffCmd(opts),
	)
	return cmd
}

// withHistory opens the runtime and hands its run store to fn.
func withHistory(ctx context.Context, opts *globalOptions, fn func(ports.HistoryStore) error) error {
	rt, err := openRuntime(ctx, opts, nil)
	if err != nil {
		return err
	}
	defer rt.Close()
	store := rt.app.History()
	if store == nil {
		return fmt.Errorf("run history is disabled (history.enabled = false)")
	}
	return fn(store)
}

func newHistoryListCmd(opts *globalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd.Context(), opts, func(store ports.HistoryStore) error {
				runs, err := store.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				printRuns(cmd.OutOrStdout(), runs)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum number of runs (0 for all)")
	return cmd
}

func newHistoryShowCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its conflict records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd.Context(), opts, func(store ports.HistoryStore) error {
				run, err := store.Run(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printRun(cmd.OutOrStdout(), run)
				return nil
			})
		},
	}
}

func newHistoryDiffCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <run-id> [run-id]",
		Short: "Show declarations whose decision changed between two runs",
		Long:  "With one run ID the run is compared with the run recorded just before it.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd.Context(), opts, func(store ports.HistoryStore) error {
				before, after, err := diffPair(cmd.Context(), store, args)
				if err != nil {
					return err
				}
				printChanges(cmd.OutOrStdout(), before, after, history.Diff(before, after))
				return nil
			})
		},
	}
}

func diffPair(ctx context.Context, store ports.HistoryStore, args []string) (history.Run, history.Run, error) {
	if len(args) == 2 {
		before, err := store.Run(ctx, args[0])
		if err != nil {
			return history.Run{}, history.Run{}, err
		}
		after, err := store.Run(ctx, args[1])
		return before, after, err
	}

	after, err := store.Run(ctx, args[0])
	if err != nil {
		return history.Run{}, history.Run{}, err
	}
	runs, err := store.Runs(ctx, 0)
	if err != nil {
		return history.Run{}, history.Run{}, err
	}
	for i, r := range runs {
		if r.ID == after.ID && i+1 < len(runs) {
			before, err := store.Run(ctx, runs[i+1].ID)
			return before, after, err
		}
	}
	return history.Run{}, history.Run{}, fmt.Errorf("run %s has no earlier run to compare with", shortID(after.ID))
}

func printRuns(w io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tGROUPS\tFILES\tCONFLICTS\tDIAGNOSTICS\tSTATUS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			shortID(r.ID),
			r.Started.Local().Format(time.DateTime),
			r.Duration.Round(time.Millisecond),
			r.Groups, r.Files, r.Conflicts, r.Diagnostics,
			status(r.Failed))
	}
	_ = tw.Flush()
}

func printRun(w io.Writer, r history.Run) {
	fmt.Fprintf(w, "run       %s\n", r.ID)
	fmt.Fprintf(w, "started   %s\n", r.Started.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "duration  %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "root      %s\n", r.Root)
	fmt.Fprintf(w, "groups    %d, files %d, diagnostics %d\n", r.Groups, r.Files, r.Diagnostics)
	fmt.Fprintf(w, "status    %s\n", status(r.Failed))
	fmt.Fprintf(w, "decisions %d\n", len(r.Decisions))
	if len(r.ConflictRecords) == 0 {
		fmt.Fprintln(w, "conflicts none")
		return
	}
	fmt.Fprintf(w, "conflicts %d\n", len(r.ConflictRecords))
	for _, c := range r.ConflictRecords {
		fmt.Fprintf(w, "  [%s] %s: %s -> %s (%s)\n", c.Group, c.Symbol, c.Before, c.After, c.Reason)
	}
}

func printChanges(w io.Writer, before, after history.Run, changes []history.Change) {
	fmt.Fprintf(w, "%s -> %s: %d changed declarations\n", shortID(before.ID), shortID(after.ID), len(changes))
	add := color.New(color.FgGreen)
	del := color.New(color.FgRed)
	mod := color.New(color.FgYellow)
	for _, c := range changes {
		switch {
		case c.Before.Symbol == "":
			add.Fprintln(w, c.String())
		case c.After.Symbol == "":
			del.Fprintln(w, c.String())
		default:
			mod.Fprintln(w, c.String())
		}
	}
}

func status(failed bool) string {
	if failed {
		return "failed"
	}
	return "ok"
}
