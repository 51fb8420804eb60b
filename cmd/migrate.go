package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
	"github.com/MrAnde7son/realestate-agent-sub002/internal/store"
)

var migrateImport string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long:  "Applies the schema and optionally replays a JSON export of source records into the fresh database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.Migrate(ctx); err != nil {
			return err
		}
		zap.L().Info("migration complete", zap.String("driver", cfg.Store.Driver))

		if migrateImport == "" {
			return nil
		}
		return importRecords(ctx, env.Store, migrateImport)
	},
}

// importRecords replays an exported record ledger. Postgres takes the COPY
// fast path; other drivers insert row by row.
func importRecords(ctx context.Context, st store.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "read %s", path)
	}

	var records []model.SourceRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return eris.Wrapf(err, "parse %s", path)
	}

	if pg, ok := st.(*store.PostgresStore); ok {
		n, err := pg.BulkInsertRecords(ctx, records)
		if err != nil {
			return err
		}
		zap.L().Info("records imported", zap.Int64("count", n))
		return nil
	}

	for _, rec := range records {
		if _, err := st.MergeRecord(ctx, rec); err != nil {
			return eris.Wrapf(err, "import record %s", rec.ID)
		}
	}
	zap.L().Info("records imported", zap.Int("count", len(records)))
	return nil
}

func init() {
	migrateCmd.Flags().StringVar(&migrateImport, "import", "", "JSON file of source records to replay after migrating")
	rootCmd.AddCommand(migrateCmd)
}
