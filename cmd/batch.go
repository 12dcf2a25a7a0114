package main

import (
	"context"
	"encoding/json"
	"os"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/riskgate/riskgate/internal/engine"
	"github.com/riskgate/riskgate/internal/model"
	"github.com/riskgate/riskgate/internal/store"
)

var (
	batchInputPath string
	batchLimit     int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Evaluate a batch of metric records concurrently",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		records, err := readBatchFile(batchInputPath)
		if err != nil {
			return err
		}

		eng, err := initEngine()
		if err != nil {
			return err
		}
		if !eng.QualityTrained() {
			return eris.New("quality model is not trained; provide a model artifact first")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		return processBatch(ctx, records, batchLimit, cfg.Batch.MaxConcurrent, eng, st)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInputPath, "input", "", "path to JSON array of metric records (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of records to evaluate (0 = all)")
	_ = batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}

func readBatchFile(path string) ([]model.MetricRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read batch file %s", path)
	}
	var records []model.MetricRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, eris.Wrapf(err, "parse batch file %s", path)
	}
	return records, nil
}

// processBatch applies limit, then evaluates records concurrently, persisting
// each decision. Individual failures are logged and counted, not fatal.
func processBatch(ctx context.Context, records []model.MetricRecord, limit, concurrency int, eng *engine.Engine, st store.Store) error {
	if len(records) == 0 {
		zap.L().Info("no records to evaluate")
		return nil
	}

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	zap.L().Info("processing batch",
		zap.Int("records", len(records)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed, blocked atomic.Int64

	for i, rec := range records {
		g.Go(func() error {
			log := zap.L().With(zap.Int("record", i))

			decision, err := eng.Evaluate(rec)
			if err != nil {
				failed.Add(1)
				log.Error("evaluation failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			if _, err := st.SaveEvaluation(gctx, rec, decision, !decision.Anomaly.RuleBased); err != nil {
				failed.Add(1)
				log.Error("failed to persist evaluation", zap.Error(err))
				return nil
			}

			succeeded.Add(1)
			if decision.FinalRecommendation == model.TierBlock {
				blocked.Add(1)
			}
			log.Info("evaluation complete",
				zap.String("recommendation", string(decision.FinalRecommendation)),
				zap.Float64("confidence", decision.Confidence),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Int64("blocked", blocked.Load()),
	)
	return nil
}
