package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"j2k/internal/core/ports"
	"j2k/internal/shared/util"
)

func newVerifyCmd(opts *globalOptions) *cobra.Command {
	flags := &conversionFlags{}
	var update bool
	cmd := &cobra.Command{
		Use:   "verify <fixture-root>",
		Short: "Compare conversions of fixture groups with their expected Kotlin files",
		Long: "Every directory under fixture-root is one file group: its .java files are converted " +
			"and compared with the .kt files stored next to them.",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return usageError{err}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(ctx, opts, flags.apply)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.app.ConversionService().Verify(ctx, ports.VerifyRequest{Root: args[0], Update: update})
			if err != nil {
				return err
			}
			if !printVerifyResult(cmd.OutOrStdout(), res, flags.quiet) {
				return errFailed
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVarP(&update, "update", "u", false, "rewrite the expected files with the current output")
	return cmd
}

// printVerifyResult reports every fixture and returns whether all passed.
func printVerifyResult(w io.Writer, res ports.VerifyResult, quiet bool) bool {
	pass := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)

	failed := 0
	for _, fx := range res.Fixtures {
		switch {
		case fx.Err != nil:
			failed++
			fail.Fprint(w, "FAIL ")
			fmt.Fprintf(w, "%s: %v\n", fx.Name, fx.Err)
		case len(fx.Updated) > 0:
			pass.Fprint(w, "UPD  ")
			fmt.Fprintf(w, "%s (%s)\n", fx.Name, strings.Join(fx.Updated, ", "))
		case fx.Passed():
			pass.Fprint(w, "PASS ")
			fmt.Fprintln(w, fx.Name)
		default:
			failed++
			fail.Fprint(w, "DIFF ")
			fmt.Fprintln(w, fx.Name)
			if !quiet {
				for _, name := range util.SortedKeys(fx.Diffs) {
					printDiff(w, fx.Diffs[name])
				}
			}
		}
	}

	summary := fmt.Sprintf("%d fixtures, %d failed", len(res.Fixtures), failed)
	if failed > 0 {
		fail.Fprintln(w, summary)
		return false
	}
	pass.Fprintln(w, summary)
	return true
}

func printDiff(w io.Writer, diff string) {
	add := color.New(color.FgGreen)
	del := color.New(color.FgRed)
	hunk := color.New(color.FgCyan)
	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			fmt.Fprint(w, line)
		case strings.HasPrefix(line, "+"):
			add.Fprint(w, line)
		case strings.HasPrefix(line, "-"):
			del.Fprint(w, line)
		case strings.HasPrefix(line, "@@"):
			hunk.Fprint(w, line)
		default:
			fmt.Fprint(w, line)
		}
	}
}
