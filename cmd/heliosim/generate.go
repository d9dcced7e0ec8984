package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/heliosphere-sim/dataset"
	"github.com/signalsfoundry/heliosphere-sim/units"
)

func generateCmd() *cobra.Command {
	var (
		out    string
		epochs int
		tMax   float64
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic dataset directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" {
				return errors.New("--out is required")
			}
			files, err := dataset.Generate(dataset.UniformEpochs(0, units.Megayears(tMax), epochs))
			if err != nil {
				return err
			}
			if err := files.WriteDir(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d epochs to %s\n", epochs, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory")
	cmd.Flags().IntVar(&epochs, "epochs", 101, "number of epochs")
	cmd.Flags().Float64Var(&tMax, "t-max", 10000, "last epoch in Myr")
	return cmd
}
