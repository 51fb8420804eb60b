package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
)

var (
	enrichCity   string
	enrichStreet string
	enrichNumber int
	enrichBlock  string
	enrichPlot   string
	enrichArea   string
	enrichRadius int
	enrichScope  string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich [asset-id]",
	Short: "Run one enrichment pass for an asset",
	Long:  "With an asset id, re-enriches that asset. Without one, creates a new asset from the scope flags and enriches it.",
	Args:  cobra.MaximumNArgs(1),
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

		assetID := ""
		if len(args) == 1 {
			assetID = args[0]
		} else {
			scope, err := scopeFromFlags()
			if err != nil {
				return err
			}
			asset, err := env.Store.CreateAsset(ctx, scope)
			if err != nil {
				return eris.Wrap(err, "create asset")
			}
			assetID = asset.ID
			zap.L().Info("asset created", zap.String("asset_id", assetID), zap.String("scope", string(scope.Type)))
		}

		result, err := env.Orch.Run(ctx, assetID)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func scopeFromFlags() (model.Scope, error) {
	st, err := model.ParseScopeType(enrichScope)
	if err != nil {
		return model.Scope{}, err
	}

	scope := model.Scope{
		Type:    st,
		City:    enrichCity,
		Street:  enrichStreet,
		Number:  enrichNumber,
		Block:   enrichBlock,
		Plot:    enrichPlot,
		Area:    enrichArea,
		RadiusM: enrichRadius,
	}

	switch st {
	case model.ScopeAddress:
		if scope.City == "" || scope.Street == "" {
			return model.Scope{}, eris.New("address scope requires --city and --street")
		}
	case model.ScopeParcel:
		if scope.Block == "" || scope.Plot == "" {
			return model.Scope{}, eris.New("parcel scope requires --block and --plot")
		}
	case model.ScopeNeighborhood:
		if scope.City == "" || scope.Area == "" {
			return model.Scope{}, eris.New("neighborhood scope requires --city and --area")
		}
	}
	return scope, nil
}

func init() {
	enrichCmd.Flags().StringVar(&enrichScope, "scope", "address", "scope type: address, parcel or neighborhood")
	enrichCmd.Flags().StringVar(&enrichCity, "city", "", "city (address/neighborhood scope)")
	enrichCmd.Flags().StringVar(&enrichStreet, "street", "", "street (address scope)")
	enrichCmd.Flags().IntVar(&enrichNumber, "number", 0, "house number (address scope)")
	enrichCmd.Flags().StringVar(&enrichBlock, "block", "", "block / gush (parcel scope)")
	enrichCmd.Flags().StringVar(&enrichPlot, "plot", "", "plot / chelka (parcel scope)")
	enrichCmd.Flags().StringVar(&enrichArea, "area", "", "neighborhood name (neighborhood scope)")
	enrichCmd.Flags().IntVar(&enrichRadius, "radius", 0, "radius in meters (neighborhood scope)")
	rootCmd.AddCommand(enrichCmd)
}
