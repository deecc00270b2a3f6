package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/sor-engine/internal/aggregator"
	"github.com/hxuan190/sor-engine/internal/aggregator/services/market"
	"github.com/hxuan190/sor-engine/internal/common"
	"github.com/hxuan190/sor-engine/internal/config"
	"github.com/hxuan190/sor-engine/internal/http"
)

// @title SOR Engine API
// @version 1.0-beta
// @description Smart order routing and settlement estimation over the exchange's central limit order books.
// @description
// @description ## - Features
// @description - **Smart Routing**: Fewest-hop paths between any two listed assets, through intermediate markets when no direct book exists
// @description - **Depth-aware Estimates**: Walks every price level the order would consume, with lot and minimum-size rounding
// @description - **Both Anchors**: Fix what you pay or what you receive
// @description - **Order Protection**: Minimum receive, slippage-adjusted amounts and banded protection prices for order building
// @description
// @description ## - Usage Tips
// @description - Amounts are display units of the anchored asset, e.g. 1.5 STRK = "1.5"
// @description - Prices are in quote units per whole base unit of each market
// @description - Default slippage is server configured, 100 bips (1%) out of the box
// @description - A quote is valid against the snapshots reported in snapshotAt only
// @description - **Rate Limit**: 10 requests/second (burst: 20)
// @description
// @BasePath /
// @schemes https http
// @tag.name quote
// @tag.description Settlement estimates with per-market breakdown
// @tag.name route
// @tag.description Shortest market paths between assets
// @tag.name markets
// @tag.description Market definitions, books and preset routes
// @tag.name admin
// @tag.description Operational endpoints

func main() {
	common.InitRuntime()

	// load env; deployments may inject it directly
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file loaded, using process environment")
	}

	general := &config.GeneralConfig{}
	if err := general.Load(); err != nil {
		log.Error().Err(err).Msg("invalid general config")
		return
	}
	common.SetupLogging(general.Env, general.LogLevel, general.LogServices)

	// di container config
	conf := container.NewConf(
		general,
		&config.RouterConfig{},
		&config.ExchangeConfig{},
		&config.StorageConfig{},
	)

	// di container
	dic, err := container.New(
		// config
		conf,

		// services
		&market.Service{},
		&aggregator.Service{},

		&http.HTTPService{},
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to create di container")
		return
	}

	// Run blocks until SIGINT/SIGTERM
	if err := dic.Run(); err != nil {
		log.Error().Err(err).Msg("failed to run di container")
		return
	}

	log.Info().Msg("Shutting down services...")
	if err := dic.Stop(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("Shutdown complete")
}
