// Package path encodes and decodes packed swap routes:
// token(32) | fee(3, big-endian) | token(32) | fee(3) | token(32) ...
package path

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/quote-engine/internal/domain"
)

const (
	AddrSize   = 32
	FeeSize    = 3
	NextOffset = AddrSize + FeeSize
	PopOffset  = NextOffset + AddrSize

	// MultiplePoolsMinLength is the length of a path holding two or more pools.
	MultiplePoolsMinLength = PopOffset + NextOffset

	// MaxFee is the largest fee a 3 byte field can carry that is still a valid pip fee.
	MaxFee = domain.FeeDenominator - 1
)

// Path is a cursor over an encoded route. The zero value is an empty path.
type Path []byte

// Validate checks that p holds at least one complete hop and no trailing bytes.
func (p Path) Validate() error {
	if len(p) < PopOffset {
		return fmt.Errorf("%w: %d bytes is shorter than one hop", domain.ErrMalformedRoute, len(p))
	}
	if (len(p)-AddrSize)%NextOffset != 0 {
		return fmt.Errorf("%w: %d bytes ends mid-hop", domain.ErrMalformedRoute, len(p))
	}
	return nil
}

// HasMultiplePools reports whether the path holds two or more pools.
func (p Path) HasMultiplePools() bool {
	return len(p) >= MultiplePoolsMinLength
}

// NumPools returns the number of pools in the path.
func (p Path) NumPools() int {
	if len(p) < PopOffset {
		return 0
	}
	return (len(p) - AddrSize) / NextOffset
}

// DecodeFirstPool returns the first hop of the path.
func (p Path) DecodeFirstPool() (domain.Hop, error) {
	if len(p) < PopOffset {
		return domain.Hop{}, fmt.Errorf("%w: %d bytes is shorter than one hop", domain.ErrMalformedRoute, len(p))
	}
	hop := domain.Hop{
		TokenIn:  solana.PublicKeyFromBytes(p[:AddrSize]),
		Fee:      uint32(p[AddrSize])<<16 | uint32(p[AddrSize+1])<<8 | uint32(p[AddrSize+2]),
		TokenOut: solana.PublicKeyFromBytes(p[NextOffset:PopOffset]),
	}
	if hop.Fee > MaxFee {
		return domain.Hop{}, fmt.Errorf("%w: fee %d", domain.ErrMalformedRoute, hop.Fee)
	}
	if hop.TokenIn.Equals(hop.TokenOut) {
		return domain.Hop{}, fmt.Errorf("%w: hop %s swaps a token for itself", domain.ErrMalformedRoute, hop.TokenIn)
	}
	return hop, nil
}

// SkipToken drops the first token and fee, leaving the path starting at the
// next pool's input token.
func (p Path) SkipToken() Path {
	if len(p) < NextOffset {
		return nil
	}
	return p[NextOffset:]
}

// Decode validates and splits an encoded route into hops.
func Decode(b []byte) ([]domain.Hop, error) {
	p := Path(b)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n := p.NumPools()
	hops := make([]domain.Hop, n)
	for k := 0; k < n; k++ {
		hop, err := p.DecodeFirstPool()
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", k, err)
		}
		hops[k] = hop
		p = p.SkipToken()
	}
	return hops, nil
}

// Encode packs a chained list of hops.
func Encode(hops []domain.Hop) ([]byte, error) {
	if len(hops) == 0 {
		return nil, fmt.Errorf("%w: empty route", domain.ErrMalformedRoute)
	}
	out := make([]byte, 0, AddrSize+len(hops)*NextOffset)
	out = append(out, hops[0].TokenIn[:]...)
	for i, hop := range hops {
		if i > 0 && !hops[i-1].TokenOut.Equals(hop.TokenIn) {
			return nil, fmt.Errorf("%w: hop %d does not start at %s", domain.ErrMalformedRoute, i, hops[i-1].TokenOut)
		}
		if hop.Fee > MaxFee {
			return nil, fmt.Errorf("%w: hop %d fee %d", domain.ErrMalformedRoute, i, hop.Fee)
		}
		if hop.TokenIn.Equals(hop.TokenOut) {
			return nil, fmt.Errorf("%w: hop %d swaps a token for itself", domain.ErrMalformedRoute, i)
		}
		out = append(out, byte(hop.Fee>>16), byte(hop.Fee>>8), byte(hop.Fee))
		out = append(out, hop.TokenOut[:]...)
	}
	return out, nil
}

// EncodeTokens builds a path from a token list and one fee per adjacent pair.
func EncodeTokens(tokens []solana.PublicKey, fees []uint32) ([]byte, error) {
	if len(tokens) < 2 || len(fees) != len(tokens)-1 {
		return nil, fmt.Errorf("%w: %d tokens with %d fees", domain.ErrMalformedRoute, len(tokens), len(fees))
	}
	hops := make([]domain.Hop, len(fees))
	for i, fee := range fees {
		hops[i] = domain.Hop{TokenIn: tokens[i], TokenOut: tokens[i+1], Fee: fee}
	}
	return Encode(hops)
}
