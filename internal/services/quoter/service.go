package quoter

import (
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/quote-engine/internal/config"
	"github.com/hxuan190/quote-engine/internal/services"
	"github.com/hxuan190/quote-engine/internal/services/market"
	"github.com/hxuan190/quote-engine/internal/services/simulator"
)

const QUOTER_SERVICE = "quoter-service"

// Service exposes the Quoter to the container, backed by the market
// service's locator and registry.
type Service struct {
	container.BaseDIInstance
	*Quoter

	logger *services.ServiceLogger
	conf   *config.QuoterConfig
}

func (svc *Service) ID() string {
	return QUOTER_SERVICE
}

func (svc *Service) Configure(c container.IContainer) error {
	svc.logger = services.NewServiceLogger(svc)
	svc.conf = c.GetConfig(config.QUOTER_CONFIG_KEY).(*config.QuoterConfig)
	marketSvc := c.Instance(market.ServiceName).(*market.Service)

	svc.Quoter = New(
		marketSvc,
		marketSvc,
		simulator.New(svc.conf.MaxSteps),
		svc.conf.PartialFillPolicy == config.PartialFillPropagate,
	)
	return nil
}

func (svc *Service) Start() error {
	svc.logger.Info().
		Int("max_steps", svc.conf.MaxSteps).
		Str("partial_fill_policy", svc.conf.PartialFillPolicy).
		Msg("quoter ready")
	return nil
}

func (svc *Service) Stop() error {
	return nil
}
