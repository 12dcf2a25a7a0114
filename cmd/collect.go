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
	collectBuild       int
	collectMetricsPath string
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Record deployment metrics for a build",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rec, err := readMetricsFile(collectMetricsPath)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		dep, err := collector.New(st).Record(ctx, collectBuild, rec)
		if err != nil {
			return eris.Wrap(err, "record deployment")
		}

		zap.L().Info("deployment recorded",
			zap.String("id", dep.ID),
			zap.Int("build_number", dep.BuildNumber),
			zap.Int("metrics", len(dep.Metrics)),
		)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize recent decisions and collections",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		snap, err := collector.New(st).Snapshot(ctx, cfg.Monitoring.LookbackWindowHours)
		if err != nil {
			return eris.Wrap(err, "build snapshot")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

func init() {
	collectCmd.Flags().IntVar(&collectBuild, "build", 0, "CI build number")
	collectCmd.Flags().StringVar(&collectMetricsPath, "metrics", "", "path to metrics JSON file (required)")
	_ = collectCmd.MarkFlagRequired("metrics")
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(statusCmd)
}
