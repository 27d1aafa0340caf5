package quoter

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math/big"

	bin "github.com/gagliardetto/binary"
	"github.com/holiman/uint256"

	"github.com/hxuan190/quote-engine/internal/domain"
)

const carrierVersion uint8 = 1

type wireTick struct {
	Index        int32
	LiquidityNet [32]byte
	Negative     bool
}

type wireState struct {
	SqrtPriceX96 [32]byte
	Liquidity    [32]byte
	Tick         int32
	TickSpacing  int32
	Fee          uint32
	Ticks        []wireTick
}

type wireCarrier struct {
	Version uint8
	States  []wireState
}

// EncodeCarrier serialises a per-hop state array with Borsh so it can leave
// the process and come back on a later quote.
func EncodeCarrier(states []*domain.CurveState) ([]byte, error) {
	w := wireCarrier{Version: carrierVersion, States: make([]wireState, len(states))}
	for i, s := range states {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("state %d: %w", i, err)
		}
		ws := wireState{
			SqrtPriceX96: s.SqrtPriceX96.Bytes32(),
			Liquidity:    s.Liquidity.Bytes32(),
			Tick:         s.Tick,
			TickSpacing:  s.TickSpacing,
			Fee:          s.Fee,
			Ticks:        make([]wireTick, len(s.Ticks)),
		}
		for j, t := range s.Ticks {
			mag, overflow := uint256.FromBig(new(big.Int).Abs(t.LiquidityNet))
			if overflow {
				return nil, fmt.Errorf("state %d tick %d: %w", i, t.Index, domain.ErrArithmeticOverflow)
			}
			ws.Ticks[j] = wireTick{Index: t.Index, LiquidityNet: mag.Bytes32(), Negative: t.LiquidityNet.Sign() < 0}
		}
		w.States[i] = ws
	}

	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(&w); err != nil {
		return nil, fmt.Errorf("encode carrier: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeCarrier is the inverse of EncodeCarrier. Every decoded state is validated.
func DecodeCarrier(data []byte) ([]*domain.CurveState, error) {
	var w wireCarrier
	if err := bin.NewBorshDecoder(data).Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: decode carrier: %v", domain.ErrInvalidCurveState, err)
	}
	if w.Version != carrierVersion {
		return nil, fmt.Errorf("%w: carrier version %d", domain.ErrInvalidCurveState, w.Version)
	}

	states := make([]*domain.CurveState, len(w.States))
	for i, ws := range w.States {
		s := &domain.CurveState{
			SqrtPriceX96: new(uint256.Int).SetBytes32(ws.SqrtPriceX96[:]),
			Liquidity:    new(uint256.Int).SetBytes32(ws.Liquidity[:]),
			Tick:         ws.Tick,
			TickSpacing:  ws.TickSpacing,
			Fee:          ws.Fee,
			Ticks:        make([]domain.Tick, len(ws.Ticks)),
		}
		for j, wt := range ws.Ticks {
			net := new(uint256.Int).SetBytes32(wt.LiquidityNet[:]).ToBig()
			if wt.Negative {
				net.Neg(net)
			}
			s.Ticks[j] = domain.Tick{Index: wt.Index, LiquidityNet: net}
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("state %d: %w", i, err)
		}
		states[i] = s
	}
	return states, nil
}

// EncodeCarrierString is EncodeCarrier in standard base64, for JSON transport.
func EncodeCarrierString(states []*domain.CurveState) (string, error) {
	raw, err := EncodeCarrier(states)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeCarrierString decodes a base64 carrier. An empty string is an empty carrier.
func DecodeCarrierString(s string) ([]*domain.CurveState, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: carrier is not base64: %v", domain.ErrInvalidCurveState, err)
	}
	return DecodeCarrier(raw)
}
