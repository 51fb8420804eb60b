package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
	"github.com/MrAnde7son/realestate-agent-sub002/internal/store"
)

var (
	assetsStatus  string
	assetsCity    string
	assetsLimit   int
	assetsOffset  int
	assetsRecords bool
)

var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "Inspect and manage stored assets",
}

var assetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List assets, optionally filtered by status or city",
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

		assets, err := env.Store.ListAssets(ctx, store.AssetFilter{
			Status: model.AssetStatus(assetsStatus),
			City:   assetsCity,
			Limit:  assetsLimit,
			Offset: assetsOffset,
		})
		if err != nil {
			return err
		}
		return printJSON(assets)
	},
}

var assetsShowCmd = &cobra.Command{
	Use:   "show <asset-id>",
	Short: "Show one asset with its resolved view",
	Args:  cobra.ExactArgs(1),
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

		asset, err := env.Store.GetAsset(ctx, args[0])
		if err != nil {
			return err
		}

		if !assetsRecords {
			return printJSON(asset)
		}

		records, err := env.Store.RecordsFor(ctx, asset.ID)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"asset": asset, "records": records})
	},
}

var assetsDeleteCmd = &cobra.Command{
	Use:   "delete <asset-id>",
	Short: "Delete an asset and its source records",
	Args:  cobra.ExactArgs(1),
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

		if err := env.Store.DeleteAsset(ctx, args[0]); err != nil {
			return err
		}
		zap.L().Info("asset deleted", zap.String("asset_id", args[0]))
		return nil
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	assetsListCmd.Flags().StringVar(&assetsStatus, "status", "", "filter by status (pending, enriching, syncing, done, failed)")
	assetsListCmd.Flags().StringVar(&assetsCity, "city", "", "filter by scope city")
	assetsListCmd.Flags().IntVar(&assetsLimit, "limit", 0, "max assets to return")
	assetsListCmd.Flags().IntVar(&assetsOffset, "offset", 0, "assets to skip")
	assetsShowCmd.Flags().BoolVar(&assetsRecords, "records", false, "include the source record ledger")

	assetsCmd.AddCommand(assetsListCmd, assetsShowCmd, assetsDeleteCmd)
	rootCmd.AddCommand(assetsCmd)
}
