package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
	"github.com/MrAnde7son/realestate-agent-sub002/internal/store"
)

var (
	batchFile  string
	batchLimit int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Enrich pending assets through the bounded queue",
	Long:  "Enriches every pending asset with bounded concurrency. With --file, first creates an address-scoped asset per city,street,number CSV row. Rows that fail are logged and skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.Migrate(ctx); err != nil {
			return err
		}

		if batchFile != "" {
			if err := createFromCSV(ctx, env, batchFile); err != nil {
				return err
			}
		}

		assets, err := env.Store.ListAssets(ctx, store.AssetFilter{
			Status: model.StatusPending,
			Limit:  batchLimit,
		})
		if err != nil {
			return err
		}

		var queued, failed int
		for _, asset := range assets {
			if _, _, err := env.Queue.Enqueue(asset.ID); err != nil {
				failed++
				zap.L().Warn("enqueue failed", zap.String("asset_id", asset.ID), zap.Error(err))
				continue
			}
			queued++
		}

		// Close drains the queue before returning.
		env.Queue.Close()
		env.Queue = nil

		zap.L().Info("batch finished", zap.Int("queued", queued), zap.Int("failed", failed))
		return nil
	},
}

// createFromCSV inserts one pending address asset per CSV row.
func createFromCSV(ctx context.Context, env *appEnv, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "open %s", path)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var created, skipped int
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return eris.Wrap(err, "read csv")
		}
		if len(row) < 2 {
			skipped++
			zap.L().Warn("skipping short row", zap.Strings("row", row))
			continue
		}

		number := 0
		if len(row) >= 3 {
			number, _ = strconv.Atoi(row[2])
		}
		if _, err := env.Store.CreateAsset(ctx, model.Scope{
			Type: model.ScopeAddress, City: row[0], Street: row[1], Number: number,
		}); err != nil {
			skipped++
			zap.L().Warn("asset creation failed", zap.Strings("row", row), zap.Error(err))
			continue
		}
		created++
	}

	zap.L().Info("csv imported", zap.Int("created", created), zap.Int("skipped", skipped))
	return nil
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "CSV file of city,street,number rows to create before enriching")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max pending assets to enrich")
	rootCmd.AddCommand(batchCmd)
}
