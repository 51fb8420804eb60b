package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/export"
	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
	"github.com/MrAnde7son/realestate-agent-sub002/internal/store"
)

var (
	exportOut    string
	exportStatus string
	exportCity   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export assets and their resolved fields to an XLSX workbook",
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
			Status: model.AssetStatus(exportStatus),
			City:   exportCity,
		})
		if err != nil {
			return err
		}

		if err := export.WriteAssets(exportOut, assets); err != nil {
			return err
		}
		zap.L().Info("export written", zap.String("path", exportOut), zap.Int("assets", len(assets)))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "assets.xlsx", "output file path")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "filter by status")
	exportCmd.Flags().StringVar(&exportCity, "city", "", "filter by scope city")
	rootCmd.AddCommand(exportCmd)
}
