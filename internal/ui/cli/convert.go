package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"j2k/internal/core/config"
	"j2k/internal/core/ports"
	"j2k/internal/shared/util"
	"j2k/internal/ui/report"
)

type conversionFlags struct {
	dryRun bool
	strict bool
	jobs   int
	quiet  bool
	sarif  string
}

func (f *conversionFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.strict, "strict", false, "fail a group on error diagnostics and non-ambiguity warnings")
	cmd.Flags().IntVarP(&f.jobs, "jobs", "j", 0, "workers per group phase (0 keeps the configured value)")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "print only the per-group summary")
	cmd.Flags().StringVar(&f.sarif, "sarif", "", "also write diagnostics as a SARIF report to this path")
}

func (f *conversionFlags) apply(cfg *config.Config) {
	if f.strict {
		cfg.Conversion.Strict = true
	}
	if f.jobs > 0 {
		cfg.Conversion.Jobs = f.jobs
	}
}

func newConvertCmd(opts *globalOptions) *cobra.Command {
	flags := &conversionFlags{}
	cmd := &cobra.Command{
		Use:   "convert [group-root...]",
		Short: "Convert Java file groups to Kotlin",
		Long: "Convert every file group under the given roots, or under the configured input root, " +
			"and write the Kotlin files to the output directory. A group that fails writes nothing.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(ctx, opts, flags.apply)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.app.ConversionService().Convert(ctx, ports.ConvertRequest{Paths: args, DryRun: flags.dryRun})
			if err != nil {
				return err
			}
			printConvertResult(cmd.OutOrStdout(), res, flags.quiet)
			if err := writeSARIF(flags.sarif, rt.paths.ProjectRoot, res); err != nil {
				return err
			}
			if res.Failed() {
				return errFailed
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVarP(&flags.dryRun, "dry-run", "n", false, "convert without writing files or recording history")
	return cmd
}

func printConvertResult(w io.Writer, res ports.ConvertResult, quiet bool) {
	ok := color.New(color.FgGreen, color.Bold)
	bad := color.New(color.FgRed, color.Bold)
	warn := color.New(color.FgYellow)

	failed := 0
	for _, g := range res.Groups {
		if g.Err != nil {
			failed++
			bad.Fprint(w, "FAIL ")
			fmt.Fprintf(w, "%s (%d files): %v\n", g.Name, g.Files, g.Err)
		} else {
			ok.Fprint(w, "OK   ")
			fmt.Fprintf(w, "%s (%d files, %d written, %d conflicts", g.Name, g.Files, len(g.Written), g.Conflicts)
			if g.Warnings > 0 {
				fmt.Fprint(w, ", ")
				warn.Fprintf(w, "%d warnings", g.Warnings)
			}
			fmt.Fprintln(w, ")")
		}
		if quiet {
			continue
		}
		for _, d := range g.Diagnostics {
			fmt.Fprintf(w, "    %s\n", d)
		}
	}

	summary := fmt.Sprintf("%d groups, %d failed in %s", len(res.Groups), failed, res.Duration.Round(time.Millisecond))
	if res.RunID != "" {
		summary += " (run " + shortID(res.RunID) + ")"
	}
	if failed > 0 {
		bad.Fprintln(w, summary)
		return
	}
	ok.Fprintln(w, summary)
}

// writeSARIF is a no-op when no report path was requested.
func writeSARIF(path, projectRoot string, res ports.ConvertResult) error {
	if path == "" {
		return nil
	}
	data, err := report.GenerateSARIF(projectRoot, Version, res)
	if err != nil {
		return fmt.Errorf("render sarif: %w", err)
	}
	if err := util.WriteFileWithDirs(path, data, 0o644); err != nil {
		return fmt.Errorf("write sarif: %w", err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
