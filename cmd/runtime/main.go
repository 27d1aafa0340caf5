package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/quote-engine/internal/common"
	"github.com/hxuan190/quote-engine/internal/config"
	"github.com/hxuan190/quote-engine/internal/http"
	"github.com/hxuan190/quote-engine/internal/services/market"
	"github.com/hxuan190/quote-engine/internal/services/quoter"
)

// @title CLMM Quote Engine API
// @version 1.0
// @description Exact quotes for swaps along fixed routes of concentrated-liquidity pools.
// @description
// @description ## - Features
// @description - **Exact input and exact output** quotes over multi-hop routes
// @description - **Stateful quotes**: a base64 carrier chains trades so each one sees the previous trades' price impact
// @description - **Single pool quotes** with an optional square root price limit
// @description - **Pool registry** fed through the admin API and persisted to BoltDB
// @description
// @description ## - Usage Tips
// @description - Amounts are in smallest token units, as decimal strings
// @description - Fee tiers are in pips: 3000 = 0.3%
// @description - Default slippage is 50 bps (0.5%)
// @BasePath /
// @schemes https http
// @tag.name quote
// @tag.description Route, stateful and single pool quotes
// @tag.name pools
// @tag.description Registered pools and their curve snapshots
// @tag.name admin
// @tag.description Pool registry maintenance, requires X-Admin-Token

func main() {
	common.TuneRuntime()

	// load env
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file, using process environment")
	}

	// di container config
	conf := container.NewConf(
		&config.GeneralConfig{},
		&config.QuoterConfig{},
		&config.StorageConfig{},
	)

	// di container
	dic, err := container.New(
		// config
		conf,

		// services
		&market.Service{},
		&quoter.Service{},

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

	// Run doesn't call Stop, we must do it manually
	log.Info().Msg("Shutting down services...")
	if err := dic.Stop(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("Shutdown complete")
}
