package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/riskgate/riskgate/internal/ingest"
)

var (
	importXLSXPath string
	importSheet    string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import deployment metrics from an XLSX export",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		rows, err := ingest.ReadMetricsXLSX(importXLSXPath, ingest.XLSXOptions{SheetName: importSheet})
		if err != nil {
			return eris.Wrap(err, "read xlsx")
		}
		if len(rows) == 0 {
			zap.L().Info("no rows to import", zap.String("xlsx", importXLSXPath))
			return nil
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		imported := 0
		for _, row := range rows {
			if _, err := st.RecordDeployment(ctx, row.BuildNumber, row.Metrics); err != nil {
				return eris.Wrapf(err, "record build %d", row.BuildNumber)
			}
			imported++
		}

		zap.L().Info("import complete",
			zap.Int("imported", imported),
			zap.String("xlsx", importXLSXPath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importXLSXPath, "xlsx", "", "path to XLSX file (required)")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "sheet name (default first sheet)")
	_ = importCmd.MarkFlagRequired("xlsx")
	rootCmd.AddCommand(importCmd)
}
