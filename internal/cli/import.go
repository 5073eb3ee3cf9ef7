package cli

import (
	"fmt"
	"log"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"quiz-session-service/internal/config"
	"quiz-session-service/internal/excel"
	pgstore "quiz-session-service/internal/infra/postgres"
)

// NewImportCmd bulk-imports questions from an Excel workbook into Postgres.
func NewImportCmd(configPath *string) *cobra.Command {
	var sheet string
	var startRow int

	cmd := &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Import quiz questions from an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			ctx := cmd.Context()
			if err := runMigrationsWithConfig(ctx, cfg); err != nil {
				return err
			}

			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			importCfg := excel.DefaultImportConfig()
			importCfg.FilePath = args[0]
			if sheet != "" {
				importCfg.SheetName = sheet
			}
			if startRow > 0 {
				importCfg.StartRow = startRow
			}

			result, err := excel.ImportQuestions(ctx, importCfg, pgstore.NewImportWriter(pool))
			if err != nil {
				return err
			}
			log.Printf("import done: %d processed, %d written, %d skipped",
				result.TotalProcessed, result.Created, result.Skipped)
			for _, e := range result.Errors {
				log.Printf("import: %s", e)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sheet, "sheet", "", "worksheet name (default Sheet1)")
	cmd.Flags().IntVar(&startRow, "start-row", 0, "first data row, 1-based (default 2)")
	return cmd
}
