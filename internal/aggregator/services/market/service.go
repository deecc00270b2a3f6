package market

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/sor-engine/internal/adapters/cache"
	"github.com/hxuan190/sor-engine/internal/adapters/exchange"
	"github.com/hxuan190/sor-engine/internal/adapters/persistence"
	"github.com/hxuan190/sor-engine/internal/common"
	"github.com/hxuan190/sor-engine/internal/config"
	"github.com/hxuan190/sor-engine/internal/domain"
	"github.com/hxuan190/sor-engine/internal/metrics"
	markets "github.com/hxuan190/sor-engine/internal/services/market"
	"github.com/hxuan190/sor-engine/internal/services/router"
)

const (
	MARKET_SERVICE = "market-service"

	redisConnectTimeout = 3 * time.Second
)

// ErrSweepInProgress is returned by Sweep while another sweep is running.
var ErrSweepInProgress = markets.ErrSweepInProgress

// Service owns the market registry, the routing graph and the sweep that
// keeps the graph fed with fresh book snapshots.
type Service struct {
	container.BaseDIInstance
	logger *common.ServiceLogger

	routerConf  *config.RouterConfig
	storageConf *config.StorageConfig

	registry  *markets.Registry
	router    *router.SnapshotRouter
	sweeper   *markets.Sweeper
	snapCache *cache.SnapshotCache
	redis     *cache.RedisStore
	storage   *persistence.Storage
	scheduler gocron.Scheduler
}

func (svc *Service) ID() string {
	return MARKET_SERVICE
}

func (svc *Service) Configure(c container.IContainer) error {
	svc.logger = common.NewServiceLogger(svc)
	svc.routerConf = c.GetConfig(config.ROUTER_CONFIG_KEY).(*config.RouterConfig)
	svc.storageConf = c.GetConfig(config.STORAGE_CONFIG_KEY).(*config.StorageConfig)
	exchangeConf := c.GetConfig(config.EXCHANGE_CONFIG_KEY).(*config.ExchangeConfig)

	registry, err := markets.LoadRegistry(exchangeConf.MarketsFile)
	if err != nil {
		return err
	}

	var opts []cache.Option
	if svc.storageConf.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
		svc.redis, err = cache.NewRedisStore(ctx, cache.RedisConfig{
			Addr:     svc.storageConf.RedisAddr,
			Password: svc.storageConf.RedisPassword,
			DB:       svc.storageConf.RedisDB,
		})
		cancel()
		if err != nil {
			svc.logger.Warn().Err(err).Str("addr", svc.storageConf.RedisAddr).Msg("[MarketService] redis unavailable, using in-process snapshot cache only")
		} else {
			opts = append(opts, cache.WithRemote(svc.redis))
		}
	}

	if svc.storageConf.PersistenceEnabled {
		svc.storage, err = persistence.NewStorage(svc.storageConf.DBPath)
		if err != nil {
			return err
		}
	}

	client := exchange.NewClient(exchangeConf.APIURL, exchangeConf.HTTPTimeout)
	ttl := time.Duration(svc.storageConf.CacheTTLMs) * time.Millisecond
	svc.snapCache = cache.NewSnapshotCache(client, ttl, opts...)

	svc.wire(registry, svc.snapCache)
	return nil
}

// New builds a service outside the container around a loaded registry.
func New(conf *config.RouterConfig, registry *markets.Registry, source markets.SnapshotSource) *Service {
	svc := &Service{routerConf: conf}
	svc.logger = common.NewServiceLogger(svc)
	svc.wire(registry, source)
	return svc
}

// wire builds the graph and the sweeper for a registry and snapshot source.
func (svc *Service) wire(registry *markets.Registry, source markets.SnapshotSource) {
	svc.registry = registry
	svc.router = router.NewSnapshotRouter(registry.Assets(), svc.routerConf.MaxHops)

	sweeperOpts := []markets.SweeperOption{markets.WithLevels(svc.routerConf.SnapshotLevels)}
	if svc.storage != nil {
		sweeperOpts = append(sweeperOpts, markets.WithStore(svc.storage))
	}
	svc.sweeper = markets.NewSweeper(registry, source, svc.router, sweeperOpts...)
	metrics.MarketCount.Set(float64(len(registry.Tickers())))
}

func (svc *Service) Start() error {
	if svc.storage != nil {
		n, err := svc.sweeper.WarmStart()
		if err != nil {
			svc.logger.Error().Err(err).Msg("[MarketService] failed to load persisted snapshots")
		} else {
			svc.logger.Info().Int("snapshots", n).Msg("[MarketService] warm start from storage")
		}
		metrics.SnapshotCount.Set(float64(svc.sweeper.Snapshots().Len()))
	}

	svc.sweep()

	var err error
	svc.scheduler, err = gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = svc.scheduler.NewJob(
		gocron.DurationJob(svc.routerConf.RefreshInterval),
		gocron.NewTask(svc.sweep),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	svc.scheduler.Start()

	svc.logger.Info().
		Int("markets", len(svc.registry.Tickers())).
		Int("assets", len(svc.registry.Assets())).
		Dur("interval", svc.routerConf.RefreshInterval).
		Msg("[MarketService] started")
	return nil
}

func (svc *Service) Stop() error {
	if svc.scheduler != nil {
		if err := svc.scheduler.Shutdown(); err != nil {
			svc.logger.Error().Err(err).Msg("[MarketService] failed to stop scheduler")
		}
	}

	if svc.storage != nil {
		snaps := svc.sweeper.Snapshots().GetAll()
		if len(snaps) > 0 {
			svc.logger.Info().Int("count", len(snaps)).Msg("[MarketService] persisting snapshots before shutdown")
			if err := svc.storage.SaveSnapshots(snaps); err != nil {
				svc.logger.Error().Err(err).Msg("[MarketService] failed to persist snapshots on shutdown")
			}
		}
		if err := svc.storage.Close(); err != nil {
			svc.logger.Error().Err(err).Msg("[MarketService] failed to close storage")
		}
	}
	if svc.redis != nil {
		if err := svc.redis.Close(); err != nil {
			svc.logger.Error().Err(err).Msg("[MarketService] failed to close redis")
		}
	}
	return nil
}

func (svc *Service) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), svc.routerConf.RefreshInterval)
	defer cancel()
	_, _ = svc.Sweep(ctx)
}

// Sweep refreshes every market once. Concurrent calls return
// ErrSweepInProgress.
func (svc *Service) Sweep(ctx context.Context) (markets.SweepResult, error) {
	res, err := svc.sweeper.RefreshAll(ctx)
	if errors.Is(err, ErrSweepInProgress) {
		metrics.SweepsSkipped.Inc()
		return res, err
	}
	metrics.SweepDuration.Observe(res.Duration.Seconds())
	if err != nil {
		svc.logger.Error().Err(err).Msg("[MarketService] sweep aborted")
		return res, err
	}

	metrics.SnapshotUpdates.Add(float64(res.Updated))
	metrics.SnapshotCount.Set(float64(svc.sweeper.Snapshots().Len()))
	for pair, ferr := range res.Failed {
		metrics.SnapshotFetchFailures.WithLabelValues(pair.Key()).Inc()
		svc.logger.Warn().Err(ferr).Str("pair", pair.String()).Msg("[MarketService] market withdrawn from routing")
	}
	if res.PersistErr != nil {
		svc.logger.Error().Err(res.PersistErr).Msg("[MarketService] failed to persist snapshots")
	}

	svc.logger.Debug().
		Int("updated", res.Updated).
		Int("removed", res.Removed).
		Uint64("sweeps", svc.sweeper.SweepCount()).
		Dur("took", res.Duration).
		Msg("[MarketService] sweep completed")
	return res, nil
}

// Refresh fetches the given markets for a single request.
func (svc *Service) Refresh(ctx context.Context, pairs []domain.TradedPair) ([]*domain.Snapshot, error) {
	return svc.sweeper.Refresh(ctx, pairs)
}

func (svc *Service) Registry() *markets.Registry {
	return svc.registry
}

func (svc *Service) Router() *router.SnapshotRouter {
	return svc.router
}

func (svc *Service) Sweeper() *markets.Sweeper {
	return svc.sweeper
}
