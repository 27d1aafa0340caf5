package market

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/quote-engine/internal/domain"
)

var poolSeed = []byte("pool")

// LocatorCacheSize bounds the number of derived addresses kept in memory.
const LocatorCacheSize = 1 << 16

type poolKey struct {
	token0 solana.PublicKey
	token1 solana.PublicKey
	fee    uint32
}

// PDALocator derives pool addresses as program derived addresses over
// ["pool", token0, token1, fee_le_u32] with the tokens sorted, so the result
// does not depend on trade direction.
type PDALocator struct {
	programID solana.PublicKey
	cache     *addressCache[poolKey, solana.PublicKey]
}

func NewPDALocator(programID solana.PublicKey) *PDALocator {
	return &PDALocator{
		programID: programID,
		cache:     newAddressCache[poolKey, solana.PublicKey](LocatorCacheSize),
	}
}

func (l *PDALocator) ProgramID() solana.PublicKey {
	return l.programID
}

// PoolAddress returns the cached address or derives and caches it.
func (l *PDALocator) PoolAddress(tokenA, tokenB solana.PublicKey, fee uint32) (solana.PublicKey, error) {
	if tokenA.Equals(tokenB) {
		return solana.PublicKey{}, fmt.Errorf("identical tokens %s", tokenA)
	}
	t0, t1 := domain.SortTokens(tokenA, tokenB)
	key := poolKey{token0: t0, token1: t1, fee: fee}

	if addr, ok := l.cache.Get(key); ok {
		return addr, nil
	}

	var feeLE [4]byte
	binary.LittleEndian.PutUint32(feeLE[:], fee)
	addr, _, err := solana.FindProgramAddress([][]byte{poolSeed, t0[:], t1[:], feeLE[:]}, l.programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive pool address: %w", err)
	}

	l.cache.Set(key, addr)
	return addr, nil
}
