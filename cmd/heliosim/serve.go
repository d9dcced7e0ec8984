package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/heliosphere-sim/dataset"
	"github.com/signalsfoundry/heliosphere-sim/internal/datasetserver"
	"github.com/signalsfoundry/heliosphere-sim/internal/logging"
	"github.com/signalsfoundry/heliosphere-sim/internal/observability"
)

func serveCmd(g *globalFlags) *cobra.Command {
	var (
		addr    string
		origins []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a dataset directory over HTTP",
		Long: "Serve a dataset directory under /data with a small JSON API under /api. " +
			"Without --dataset-dir a synthetic dataset is generated into a temporary directory.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg, cmd)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			dir := cfg.Dataset.Dir
			if dir == "" {
				tmp, err := os.MkdirTemp("", "heliosim-dataset-")
				if err != nil {
					return err
				}
				defer os.RemoveAll(tmp)
				files, err := dataset.Generate(dataset.UniformEpochs(0, 10000, 101))
				if err != nil {
					return err
				}
				if err := files.WriteDir(tmp); err != nil {
					return err
				}
				log.Info(ctx, "serving synthetic dataset", logging.String("dir", tmp))
				dir = tmp
			}

			collector, err := observability.NewHelioCollector(prometheus.DefaultRegisterer)
			if err != nil {
				return err
			}
			srv := datasetserver.New(os.DirFS(dir),
				datasetserver.WithLogger(log),
				datasetserver.WithAllowedOrigins(origins...),
				datasetserver.WithMetricsHandler(collector.Handler()),
			)
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringSliceVar(&origins, "allow-origin", nil, "CORS origins (default any)")
	return cmd
}
