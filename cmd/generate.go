package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/riskgate/riskgate/internal/collector"
)

var (
	generateSamples int
	generateSeed    int64
	generateProfile string
	generateOutput  string
	generateStore   bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate synthetic deployment metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		samples := generateSamples
		if samples == 0 {
			samples = cfg.Generate.Samples
		}
		seed := generateSeed
		if seed == 0 {
			seed = cfg.Generate.Seed
		}

		profile := collector.DefaultProfile()
		profilePath := generateProfile
		if profilePath == "" {
			profilePath = cfg.Generate.Profile
		}
		if profilePath != "" {
			p, err := collector.LoadProfile(profilePath)
			if err != nil {
				return eris.Wrap(err, "load generation profile")
			}
			profile = p
		}

		deps := collector.NewGenerator(seed, profile).Generate(samples)

		if generateStore {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}
			for _, dep := range deps {
				if _, err := st.RecordDeployment(ctx, dep.BuildNumber, dep.Metrics); err != nil {
					return eris.Wrapf(err, "record build %d", dep.BuildNumber)
				}
			}
			zap.L().Info("synthetic deployments stored", zap.Int("count", len(deps)))
		}

		out := os.Stdout
		if generateOutput != "" {
			f, err := os.Create(generateOutput)
			if err != nil {
				return eris.Wrapf(err, "create output file %s", generateOutput)
			}
			defer f.Close()
			out = f
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(deps); err != nil {
			return eris.Wrap(err, "encode samples")
		}

		zap.L().Info("generation complete",
			zap.Int("samples", samples),
			zap.Int64("seed", seed),
		)
		return nil
	},
}

func init() {
	generateCmd.Flags().IntVar(&generateSamples, "samples", 0, "number of samples (default from config)")
	generateCmd.Flags().Int64Var(&generateSeed, "seed", 0, "random seed (default from config)")
	generateCmd.Flags().StringVar(&generateProfile, "profile", "", "path to YAML generation profile")
	generateCmd.Flags().StringVar(&generateOutput, "output", "", "write samples to file instead of stdout")
	generateCmd.Flags().BoolVar(&generateStore, "store", false, "also record samples as deployments in the store")
	rootCmd.AddCommand(generateCmd)
}
