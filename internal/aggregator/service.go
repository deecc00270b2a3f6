package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/sor-engine/internal/aggregator/services/market"
	"github.com/hxuan190/sor-engine/internal/common"
	"github.com/hxuan190/sor-engine/internal/config"
	"github.com/hxuan190/sor-engine/internal/domain"
	"github.com/hxuan190/sor-engine/internal/metrics"
	"github.com/hxuan190/sor-engine/internal/services/liquidity"
	"github.com/hxuan190/sor-engine/internal/services/router"
	"github.com/hxuan190/sor-engine/internal/services/settlement"
)

const AGGREGATOR_SERVICE = "aggregator-service"

var (
	// Error aliases
	ErrNoPath              = domain.ErrNoPath
	ErrSameAsset           = domain.ErrSameAsset
	ErrUnknownAsset        = domain.ErrUnknownAsset
	ErrUnknownMarket       = domain.ErrUnknownMarket
	ErrSnapshotUnavailable = domain.ErrSnapshotUnavailable
	ErrInvalidAmount       = domain.ErrInvalidAmount
)

// Service answers route and settlement questions over the market service's
// graph. It holds no state of its own.
type Service struct {
	container.BaseDIInstance
	logger *common.ServiceLogger

	marketSvc *market.Service
	conf      *config.RouterConfig
}

// NewService builds a service outside the container.
func NewService(marketSvc *market.Service, conf *config.RouterConfig) *Service {
	svc := &Service{marketSvc: marketSvc, conf: conf}
	svc.logger = common.NewServiceLogger(svc)
	return svc
}

func (svc *Service) ID() string {
	return AGGREGATOR_SERVICE
}

func (svc *Service) Configure(c container.IContainer) error {
	svc.logger = common.NewServiceLogger(svc)
	svc.conf = c.GetConfig(config.ROUTER_CONFIG_KEY).(*config.RouterConfig)
	svc.marketSvc = c.Instance(market.MARKET_SERVICE).(*market.Service)
	return nil
}

func (svc *Service) Start() error {
	svc.logger.Info().
		Int("max_hops", svc.conf.MaxHops).
		Uint64("exchange_fee_ppm", svc.conf.ExchangeFeePpm).
		Uint64("router_fee_ppm", svc.conf.RouterFeePpm).
		Msg("[aggregatorService] ready")
	return nil
}

func (svc *Service) Stop() error {
	return nil
}

func (svc *Service) MarketService() *market.Service {
	return svc.marketSvc
}

func (svc *Service) checkAsset(a domain.Asset) error {
	if _, ok := svc.marketSvc.Registry().Asset(a); !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownAsset, a)
	}
	return nil
}

// FindRoute resolves the shortest route from source to target. When no
// route exists the markets are swept once and the search retried.
func (svc *Service) FindRoute(ctx context.Context, source, target domain.Asset, filter router.Filter) (*router.Route, error) {
	if err := svc.checkAsset(source); err != nil {
		return nil, err
	}
	if err := svc.checkAsset(target); err != nil {
		return nil, err
	}

	start := time.Now()
	rt := svc.marketSvc.Router()
	route, err := rt.FindRoute(source, target, filter)
	if errors.Is(err, domain.ErrNoPath) {
		metrics.RouteRetries.Inc()
		if _, serr := svc.marketSvc.Sweep(ctx); serr != nil && !errors.Is(serr, market.ErrSweepInProgress) {
			svc.logger.Warn().Err(serr).Msg("[aggregatorService] on-demand sweep failed")
		}
		route, err = rt.FindRoute(source, target, filter)
	}
	metrics.RouteSearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	metrics.RouteHops.Observe(float64(route.HopCount()))
	return route, nil
}

// BuildPath fetches fresh snapshots for every hop of the route and wraps
// them into a liquidity path. The fresh snapshots are installed into the
// routing graph as well.
func (svc *Service) BuildPath(ctx context.Context, route *router.Route) (liquidity.Path, error) {
	if route == nil || route.HopCount() == 0 {
		return nil, domain.ErrNoPath
	}
	snaps, err := svc.marketSvc.Refresh(ctx, route.Pairs())
	if err != nil {
		return nil, err
	}

	registry := svc.marketSvc.Registry()
	hops := make([]liquidity.Hop, route.HopCount())
	for i, edge := range route.Hops {
		spec, ok := registry.Ticker(edge.Pair)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownMarket, edge.Pair)
		}
		baseDec, err := registry.Decimals(edge.Pair.Base)
		if err != nil {
			return nil, err
		}
		quoteDec, err := registry.Decimals(edge.Pair.Quote)
		if err != nil {
			return nil, err
		}
		hops[i] = liquidity.Hop{
			Spec:          spec,
			Snapshot:      snaps[i],
			SellSide:      edge.SellSide,
			BaseDecimals:  baseDec,
			QuoteDecimals: quoteDec,
		}
	}

	if len(hops) == 1 {
		return liquidity.NewDirectPath(hops[0]), nil
	}
	pair, err := registry.PairFor(route.Source, route.Target)
	if err != nil {
		return nil, err
	}
	return liquidity.NewComplexPath(pair, hops), nil
}

// Estimate computes the settlement of params against path.
func (svc *Service) Estimate(path liquidity.Path, params settlement.Params) domain.Estimate {
	est := settlement.Estimate(path, params)
	if nv, ok := est.(domain.NoViableSettlement); ok {
		metrics.NoViableSettlements.WithLabelValues(nv.Reason.String()).Inc()
	}
	return est
}

// Params fills fees from configuration and slippage from the request or
// the configured default.
func (svc *Service) Params(amount *uint256.Int, anchor domain.Anchor, slippageBips *uint64) settlement.Params {
	slippage := svc.conf.DefaultSlippageBips
	if slippageBips != nil {
		slippage = *slippageBips
	}
	return settlement.Params{
		Amount:         amount,
		Anchor:         anchor,
		ExchangeFeePpm: svc.conf.ExchangeFeePpm,
		RouterFeePpm:   svc.conf.RouterFeePpm,
		SlippageBips:   slippage,
	}
}
