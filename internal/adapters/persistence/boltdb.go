package persistence

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	boltdb "github.com/andrew-solarstorm/bolt-db"
	"github.com/bytedance/sonic"
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/quote-engine/internal/domain"
)

const (
	PoolsBucket = "pools"

	DefaultDBPath = "./data/pools.db"
)

type StoredPool struct {
	Address         string `json:"address"`
	Token0          string `json:"token0"`
	Token1          string `json:"token1"`
	Fee             uint32 `json:"fee"`
	Active          bool   `json:"active"`
	LastUpdatedSlot uint64 `json:"lastUpdatedSlot"`

	Curve *StoredCurve `json:"curve,omitempty"`
}

type StoredCurve struct {
	SqrtPriceX96 string       `json:"sqrtPriceX96"` // uint160 as decimal string
	Liquidity    string       `json:"liquidity"`    // uint128 as decimal string
	Tick         int32        `json:"tick"`
	TickSpacing  int32        `json:"tickSpacing"`
	Ticks        []StoredTick `json:"ticks"`
}

type StoredTick struct {
	Index        int32  `json:"index"`
	LiquidityNet string `json:"liquidityNet"` // int128 as decimal string
}

type Storage struct {
	db     *boltdb.BoltDatabase
	dbPath string
}

func NewStorage(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db := boltdb.NewBoltDatabase(dbPath)
	if db == nil {
		return nil, fmt.Errorf("failed to open database at %s", dbPath)
	}

	log.Info().Str("path", dbPath).Msg("[poolStorage] opened database")

	return &Storage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Storage) SavePool(pool *domain.Pool) error {
	data, err := sonic.Marshal(PoolToStored(pool))
	if err != nil {
		return fmt.Errorf("failed to marshal pool: %w", err)
	}

	return s.db.Set(PoolsBucket, []byte(pool.Address.String()), data)
}

func (s *Storage) SavePoolBatch(pools []*domain.Pool) error {
	if len(pools) == 0 {
		return nil
	}

	batch := s.db.NewBatch()
	for _, pool := range pools {
		data, err := sonic.Marshal(PoolToStored(pool))
		if err != nil {
			return fmt.Errorf("failed to marshal pool %s: %w", pool.Address.String(), err)
		}

		value := data
		op := &boltdb.WriteOperation{
			Bucket: []byte(PoolsBucket),
			Key:    []byte(pool.Address.String()),
			Value:  &value,
			Op:     boltdb.OpSet,
		}
		if err := batch.Add(op); err != nil {
			return fmt.Errorf("failed to add pool %s to batch: %w", pool.Address.String(), err)
		}
	}

	if err := batch.Execute(); err != nil {
		log.Error().Err(err).Int("count", len(pools)).Msg("[poolStorage] FAILED to execute batch")
		return err
	}

	log.Info().Int("count", len(pools)).Msg("[poolStorage] saved pool batch")
	return nil
}

func (s *Storage) LoadAllPools() ([]*domain.Pool, error) {
	data, err := s.db.List(PoolsBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}

	pools := make([]*domain.Pool, 0, len(data))
	unmarshalFailed := 0
	conversionFailed := 0

	for address, value := range data {
		var stored StoredPool
		if err := sonic.Unmarshal(value, &stored); err != nil {
			log.Error().Str("address", address).Err(err).Msg("[poolStorage] failed to unmarshal pool, skipping")
			unmarshalFailed++
			continue
		}

		pool, err := StoredToPool(&stored)
		if err != nil {
			log.Error().Str("address", address).Err(err).Msg("[poolStorage] failed to convert stored pool, skipping")
			conversionFailed++
			continue
		}

		pools = append(pools, pool)
	}

	if unmarshalFailed > 0 || conversionFailed > 0 {
		log.Error().
			Int("total_in_db", len(data)).
			Int("loaded", len(pools)).
			Int("unmarshal_failed", unmarshalFailed).
			Int("conversion_failed", conversionFailed).
			Msg("[poolStorage] pool loading completed with errors")
	} else {
		log.Info().
			Int("total_in_db", len(data)).
			Int("loaded", len(pools)).
			Msg("[poolStorage] pool loading completed successfully")
	}

	return pools, nil
}

func (s *Storage) GetPoolCount() (int, error) {
	data, err := s.db.List(PoolsBucket)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// PoolToStored converts a pool to its JSON record. Big numbers are kept as
// decimal strings.
func PoolToStored(pool *domain.Pool) *StoredPool {
	stored := &StoredPool{
		Address:         pool.Address.String(),
		Token0:          pool.Token0.String(),
		Token1:          pool.Token1.String(),
		Fee:             pool.Fee,
		Active:          pool.Active,
		LastUpdatedSlot: pool.LastUpdatedSlot,
	}

	if c := pool.Curve; c != nil && c.SqrtPriceX96 != nil && c.Liquidity != nil {
		ticks := make([]StoredTick, len(c.Ticks))
		for i, t := range c.Ticks {
			ticks[i] = StoredTick{Index: t.Index, LiquidityNet: t.LiquidityNet.String()}
		}
		stored.Curve = &StoredCurve{
			SqrtPriceX96: c.SqrtPriceX96.Dec(),
			Liquidity:    c.Liquidity.Dec(),
			Tick:         c.Tick,
			TickSpacing:  c.TickSpacing,
			Ticks:        ticks,
		}
	}

	return stored
}

// StoredToPool converts a JSON record back to a validated pool.
func StoredToPool(stored *StoredPool) (*domain.Pool, error) {
	// an empty address is left zero for the caller to derive
	var address solana.PublicKey
	if stored.Address != "" {
		var err error
		if address, err = solana.PublicKeyFromBase58(stored.Address); err != nil {
			return nil, fmt.Errorf("invalid address: %w", err)
		}
	}

	token0, err := solana.PublicKeyFromBase58(stored.Token0)
	if err != nil {
		return nil, fmt.Errorf("invalid token0: %w", err)
	}

	token1, err := solana.PublicKeyFromBase58(stored.Token1)
	if err != nil {
		return nil, fmt.Errorf("invalid token1: %w", err)
	}

	pool := &domain.Pool{
		Address:         address,
		Token0:          token0,
		Token1:          token1,
		Fee:             stored.Fee,
		Active:          stored.Active,
		LastUpdatedSlot: stored.LastUpdatedSlot,
	}

	if stored.Curve == nil {
		return nil, fmt.Errorf("%w: pool %s has no curve", domain.ErrInvalidCurveState, stored.Address)
	}
	curve, err := StoredToCurve(stored.Curve, stored.Fee)
	if err != nil {
		return nil, err
	}
	pool.Curve = curve

	if err := pool.Validate(); err != nil {
		return nil, err
	}
	pool.UpdateFlags()
	return pool, nil
}

// StoredToCurve parses the decimal fields of a stored curve.
func StoredToCurve(stored *StoredCurve, fee uint32) (*domain.CurveState, error) {
	sqrtPrice, err := uint256.FromDecimal(stored.SqrtPriceX96)
	if err != nil {
		return nil, fmt.Errorf("%w: sqrtPriceX96 %q: %v", domain.ErrInvalidCurveState, stored.SqrtPriceX96, err)
	}
	liquidity, err := uint256.FromDecimal(stored.Liquidity)
	if err != nil {
		return nil, fmt.Errorf("%w: liquidity %q: %v", domain.ErrInvalidCurveState, stored.Liquidity, err)
	}

	ticks := make([]domain.Tick, len(stored.Ticks))
	for i, t := range stored.Ticks {
		net, ok := new(big.Int).SetString(t.LiquidityNet, 10)
		if !ok {
			return nil, fmt.Errorf("%w: tick %d liquidityNet %q", domain.ErrInvalidCurveState, t.Index, t.LiquidityNet)
		}
		ticks[i] = domain.Tick{Index: t.Index, LiquidityNet: net}
	}

	return &domain.CurveState{
		SqrtPriceX96: sqrtPrice,
		Liquidity:    liquidity,
		Tick:         stored.Tick,
		TickSpacing:  stored.TickSpacing,
		Fee:          fee,
		Ticks:        ticks,
	}, nil
}
