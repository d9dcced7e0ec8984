package main

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/heliosphere-sim/overlays"
)

var errValidationFailed = errors.New("validation failed")

func validateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the present-day parameters against in-situ measurements",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg, cmd)
			ctx := cmd.Context()

			s, err := newSession(ctx, cfg, log, prometheus.DefaultRegisterer, false)
			if err != nil {
				return err
			}
			defer s.Close()

			p, _ := s.reg.Parameters()
			report := overlays.NewValidator(log, s.collector).Validate(ctx, p, s.reg)
			out := cmd.OutOrStdout()
			for _, r := range report.Results {
				fmt.Fprintln(out, r.String())
			}
			if !report.Passed() {
				return fmt.Errorf("%w: %d of %d checks", errValidationFailed, len(report.Failures()), len(report.Results))
			}
			return nil
		},
	}
}
