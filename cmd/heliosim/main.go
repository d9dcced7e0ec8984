// Command heliosim drives the heliosphere simulation headlessly: it runs
// the frame loop, checks a dataset against in-situ measurements, serves a
// dataset directory over HTTP and generates synthetic datasets.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/heliosphere-sim/internal/config"
	"github.com/signalsfoundry/heliosphere-sim/internal/logging"
)

type globalFlags struct {
	configPath string
	datasetURL string
	datasetDir string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var g globalFlags
	rootCmd := &cobra.Command{
		Use:           "heliosim",
		Short:         "Heliosphere evolution simulator",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "config file (.yaml or .gcfg)")
	pf.StringVar(&g.datasetURL, "dataset-url", "", "base URL of an HTTP dataset")
	pf.StringVar(&g.datasetDir, "dataset-dir", "", "dataset directory on disk")
	pf.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")

	rootCmd.AddCommand(runCmd(&g))
	rootCmd.AddCommand(validateCmd(&g))
	rootCmd.AddCommand(serveCmd(&g))
	rootCmd.AddCommand(generateCmd())
	return rootCmd
}

// loadConfig layers defaults, the config file, the environment and flags.
func (g *globalFlags) loadConfig() (config.Config, error) {
	cfg := config.Default()
	if g.configPath != "" {
		loaded, err := config.Load(g.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return config.Config{}, err
	}
	if g.datasetURL != "" {
		cfg.Dataset.URL = g.datasetURL
	}
	if g.datasetDir != "" {
		cfg.Dataset.Dir = g.datasetDir
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config, cmd *cobra.Command) logging.Logger {
	return logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
}
