package market

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/quote-engine/internal/adapters/persistence"
	"github.com/hxuan190/quote-engine/internal/config"
	"github.com/hxuan190/quote-engine/internal/domain"
	"github.com/hxuan190/quote-engine/internal/metrics"
	"github.com/hxuan190/quote-engine/internal/services"
)

const (
	ServiceName = "MarketService"
)

// Service owns the pool registry: it resolves pool addresses, serves curve
// snapshots to the quoter and keeps the registry persisted in BoltDB.
type Service struct {
	container.BaseDIInstance
	logger *services.ServiceLogger

	config   *config.StorageConfig
	locator  *PDALocator
	registry *Registry
	storage  *persistence.Storage

	pendingPools   []*domain.Pool
	pendingPoolsMu sync.Mutex

	updateCount atomic.Uint64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func (svc *Service) ID() string {
	return ServiceName
}

func (svc *Service) Configure(c container.IContainer) error {
	storageConfig := c.GetConfig(config.STORAGE_CONFIG_KEY).(*config.StorageConfig)
	quoterConfig := c.GetConfig(config.QUOTER_CONFIG_KEY).(*config.QuoterConfig)
	return svc.init(storageConfig, quoterConfig.PoolProgramID)
}

// NewService builds a market service outside the container, for tools and
// tests. Start loads persisted pools; Stop flushes and closes storage.
func NewService(cfg *config.StorageConfig, programID solana.PublicKey) (*Service, error) {
	svc := &Service{}
	if err := svc.init(cfg, programID); err != nil {
		return nil, err
	}
	return svc, nil
}

func (svc *Service) init(cfg *config.StorageConfig, programID solana.PublicKey) error {
	svc.logger = services.NewServiceLogger(svc)
	svc.config = cfg
	svc.locator = NewPDALocator(programID)
	svc.registry = NewRegistry()
	svc.pendingPools = make([]*domain.Pool, 0)
	svc.stopCh = make(chan struct{})

	if svc.config.PersistenceEnabled {
		storage, err := persistence.NewStorage(svc.config.DBPath)
		if err != nil {
			return err
		}
		svc.storage = storage
	}
	return nil
}

func (svc *Service) Start() error {
	if svc.storage != nil {
		svc.loadPoolsFromStorage()
	} else {
		svc.logger.Info().Msg("[MarketService] persistence disabled, starting with an empty registry")
	}

	svc.wg.Add(1)
	go svc.logStats()

	if svc.storage != nil && svc.config.PersistInterval > 0 {
		svc.wg.Add(1)
		go svc.processPersistence()
	}
	return nil
}

func (svc *Service) Stop() error {
	close(svc.stopCh)
	svc.wg.Wait()

	if svc.storage != nil {
		svc.persistPendingPools()
		if err := svc.storage.Close(); err != nil {
			svc.logger.Error().Err(err).Msg("[MarketService] failed to close storage")
		}
	}
	return nil
}

// PoolAddress implements the quoter's pool locator.
func (svc *Service) PoolAddress(tokenA, tokenB solana.PublicKey, fee uint32) (solana.PublicKey, error) {
	return svc.locator.PoolAddress(tokenA, tokenB, fee)
}

// CurveState implements the quoter's curve-state source.
func (svc *Service) CurveState(ctx context.Context, pool solana.PublicKey) (*domain.CurveState, error) {
	return svc.registry.CurveState(ctx, pool)
}

// Upsert validates and stores a pool snapshot. A zero address is derived
// from the tokens and fee; a non-zero one must match the derivation.
func (svc *Service) Upsert(pool *domain.Pool) (*domain.Pool, error) {
	derived, err := svc.locator.PoolAddress(pool.Token0, pool.Token1, pool.Fee)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCurveState, err)
	}
	if pool.Address.IsZero() {
		pool.Address = derived
	} else if !pool.Address.Equals(derived) {
		return nil, fmt.Errorf("%w: address %s does not match derived %s", domain.ErrInvalidCurveState, pool.Address, derived)
	}

	if err := svc.registry.Put(pool); err != nil {
		return nil, err
	}
	stored, _ := svc.registry.Get(pool.Address)

	svc.updateCount.Add(1)
	metrics.PoolUpdates.Inc()
	metrics.PoolCount.Set(float64(svc.registry.Len()))
	metrics.ReadyPoolCount.Set(float64(svc.registry.ReadyCount()))

	svc.queuePoolForPersistence(stored)
	return stored, nil
}

// SetActive enables or disables quoting through a pool.
func (svc *Service) SetActive(addr solana.PublicKey, active bool) error {
	if !svc.registry.SetActive(addr, active) {
		return fmt.Errorf("%w: pool %s not found", domain.ErrUnresolvedPool, addr)
	}
	pool, _ := svc.registry.Get(addr)
	metrics.ReadyPoolCount.Set(float64(svc.registry.ReadyCount()))
	svc.queuePoolForPersistence(pool)
	return nil
}

func (svc *Service) Pool(addr solana.PublicKey) (*domain.Pool, bool) {
	return svc.registry.Get(addr)
}

func (svc *Service) Pools() []*domain.Pool {
	return svc.registry.All()
}

func (svc *Service) GetStats() (int, uint64) {
	return svc.registry.Len(), svc.updateCount.Load()
}

func (svc *Service) loadPoolsFromStorage() {
	pools, err := svc.storage.LoadAllPools()
	if err != nil {
		svc.logger.Error().Err(err).Msg("[MarketService] failed to load pools from storage")
		return
	}

	loaded := 0
	for _, pool := range pools {
		if err := svc.registry.Put(pool); err != nil {
			svc.logger.Pool(pool.Address).Warn().Err(err).Msg("[MarketService] skipping invalid stored pool")
			continue
		}
		loaded++
	}

	metrics.PoolCount.Set(float64(svc.registry.Len()))
	metrics.ReadyPoolCount.Set(float64(svc.registry.ReadyCount()))
	svc.logger.Info().Int("count", loaded).Msg("[MarketService] loaded pools from storage")
}

func (svc *Service) queuePoolForPersistence(pool *domain.Pool) {
	if svc.storage == nil || pool == nil {
		return
	}
	if svc.config.PersistInterval == 0 {
		if err := svc.storage.SavePool(pool); err != nil {
			metrics.PoolPersistFailures.Inc()
			svc.logger.Pool(pool.Address).Error().Err(err).Msg("[MarketService] failed to persist pool")
		}
		return
	}
	svc.pendingPoolsMu.Lock()
	defer svc.pendingPoolsMu.Unlock()
	svc.pendingPools = append(svc.pendingPools, pool)
}

func (svc *Service) processPersistence() {
	defer svc.wg.Done()
	ticker := time.NewTicker(time.Duration(svc.config.PersistInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-svc.stopCh:
			return
		case <-ticker.C:
			svc.persistPendingPools()
		}
	}
}

func (svc *Service) persistPendingPools() {
	svc.pendingPoolsMu.Lock()
	if len(svc.pendingPools) == 0 {
		svc.pendingPoolsMu.Unlock()
		return
	}
	pools := svc.pendingPools
	svc.pendingPools = make([]*domain.Pool, 0)
	svc.pendingPoolsMu.Unlock()

	if err := svc.storage.SavePoolBatch(pools); err != nil {
		metrics.PoolPersistFailures.Add(float64(len(pools)))
		svc.logger.Error().Err(err).Int("count", len(pools)).Msg("[MarketService] failed to persist pools")
		svc.pendingPoolsMu.Lock()
		svc.pendingPools = append(svc.pendingPools, pools...)
		svc.pendingPoolsMu.Unlock()
		return
	}

	svc.logger.Debug().Int("count", len(pools)).Msg("[MarketService] persisted pools to storage")
}

func (svc *Service) logStats() {
	defer svc.wg.Done()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-svc.stopCh:
			return
		case <-ticker.C:
			count, updates := svc.GetStats()
			event := svc.logger.Info().
				Int("pools", count).
				Int("ready", svc.registry.ReadyCount()).
				Uint64("updates", updates)
			if svc.storage != nil {
				if stored, err := svc.storage.GetPoolCount(); err == nil {
					event = event.Int("stored", stored)
				}
			}
			event.Msg("[MarketService] stats")
		}
	}
}
