package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"j2k/internal/core/ports"
)

func newWatchCmd(opts *globalOptions) *cobra.Command {
	flags := &conversionFlags{}
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch [group-root...]",
		Short: "Convert on start and again whenever Java sources change",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(ctx, opts, flags.apply)
			if err != nil {
				return err
			}
			defer rt.Close()

			addr := metricsAddr
			if addr == "" {
				addr = rt.cfg.Observability.MetricsAddress
			}
			if addr != "" {
				srv := NewObservabilityServer(addr)
				if err := srv.Start(ctx); err != nil {
					return err
				}
				defer func() {
					stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Stop(stopCtx)
				}()
			}

			slog.Info("watching for changes", "roots", len(args), "debounce", rt.cfg.Watch.Debounce)
			out := cmd.OutOrStdout()
			return rt.app.ConversionService().Watch(ctx, ports.ConvertRequest{Paths: args}, func(res ports.ConvertResult) {
				printConvertResult(out, res, flags.quiet)
				if err := writeSARIF(flags.sarif, rt.paths.ProjectRoot, res); err != nil {
					slog.Warn("sarif report not written", "error", err)
				}
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}
