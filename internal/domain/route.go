package domain

import (
	"bytes"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// FeeDenominator is the fee unit: fees are expressed in pips (hundredths of a bip).
const FeeDenominator = 1_000_000

// Hop is one pool traversal of a route.
type Hop struct {
	TokenIn  solana.PublicKey
	TokenOut solana.PublicKey
	Fee      uint32
}

// ZeroForOne reports whether the hop sells the pool's token0 for token1.
// Always derived from the token identities, never stored.
func (h Hop) ZeroForOne() bool {
	return bytes.Compare(h.TokenIn[:], h.TokenOut[:]) < 0
}

// Tokens returns the hop tokens in pool order (token0, token1).
func (h Hop) Tokens() (solana.PublicKey, solana.PublicKey) {
	if h.ZeroForOne() {
		return h.TokenIn, h.TokenOut
	}
	return h.TokenOut, h.TokenIn
}

func (h Hop) String() string {
	return fmt.Sprintf("%s->%s@%d", h.TokenIn, h.TokenOut, h.Fee)
}

// SortTokens orders a token pair the way pools store them.
func SortTokens(a, b solana.PublicKey) (solana.PublicKey, solana.PublicKey) {
	if bytes.Compare(a[:], b[:]) < 0 {
		return a, b
	}
	return b, a
}
