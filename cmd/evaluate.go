package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/riskgate/riskgate/internal/engine"
	"github.com/riskgate/riskgate/internal/model"
)

var (
	evaluateMetricsPath string
	evaluateSave        bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate one set of deployment metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rec, err := readMetricsFile(evaluateMetricsPath)
		if err != nil {
			return err
		}

		eng, err := initEngine()
		if err != nil {
			return err
		}

		decision, err := eng.Evaluate(rec)
		if err != nil {
			if eris.Is(err, engine.ErrModelNotTrained) {
				return eris.New("quality model is not trained; provide a model artifact first")
			}
			return eris.Wrap(err, "evaluate")
		}

		if evaluateSave {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}
			if _, err := st.SaveEvaluation(ctx, rec, decision, !decision.Anomaly.RuleBased); err != nil {
				return eris.Wrap(err, "save evaluation")
			}
		}

		zap.L().Info("evaluation complete",
			zap.String("recommendation", string(decision.FinalRecommendation)),
			zap.Float64("confidence", decision.Confidence),
			zap.Bool("anomaly", decision.Anomaly.IsAnomaly),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(decision)
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateMetricsPath, "metrics", "", "path to metrics JSON file (required)")
	evaluateCmd.Flags().BoolVar(&evaluateSave, "save", false, "persist the evaluation to the store")
	_ = evaluateCmd.MarkFlagRequired("metrics")
	rootCmd.AddCommand(evaluateCmd)
}

// readMetricsFile loads a flat JSON object of metric name to value.
func readMetricsFile(path string) (model.MetricRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read metrics file %s", path)
	}
	var rec model.MetricRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrapf(err, "parse metrics file %s", path)
	}
	if len(rec) == 0 {
		return nil, eris.Errorf("metrics file %s is empty", path)
	}
	return rec, nil
}
