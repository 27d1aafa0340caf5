package clmm

import (
	"sort"

	"github.com/hxuan190/quote-engine/internal/domain"
)

// compress maps a tick to its spacing index, rounding towards negative infinity.
func compress(tick, spacing int32) int32 {
	c := tick / spacing
	if tick < 0 && tick%spacing != 0 {
		c--
	}
	return c
}

// NextInitializedTickWithinOneWord emulates the 256-bit word tick bitmap over
// a sorted list of initialized ticks. With lte it searches the current word at
// or below tick, otherwise the word above tick. If no initialized tick is found
// the word edge is returned with initialized=false. The result is clamped to
// [MinTick, MaxTick].
func NextInitializedTickWithinOneWord(ticks []domain.Tick, tick, spacing int32, lte bool) (int32, bool) {
	c := int64(compress(tick, spacing))
	sp := int64(spacing)

	// word edges are computed in int64 so a wide spacing cannot wrap
	var next int64
	var initialized bool
	if lte {
		bitPos := c & 0xff
		lo, hi := (c-bitPos)*sp, c*sp
		// largest initialized index <= hi
		i := sort.Search(len(ticks), func(i int) bool { return int64(ticks[i].Index) > hi }) - 1
		if i >= 0 && int64(ticks[i].Index) >= lo {
			next, initialized = int64(ticks[i].Index), true
		} else {
			next = lo
		}
	} else {
		c1 := c + 1
		bitPos := c1 & 0xff
		lo, hi := c1*sp, (c1+(255-bitPos))*sp
		i := sort.Search(len(ticks), func(i int) bool { return int64(ticks[i].Index) >= lo })
		if i < len(ticks) && int64(ticks[i].Index) <= hi {
			next, initialized = int64(ticks[i].Index), true
		} else {
			next = hi
		}
	}

	if next < int64(MinTick) {
		next = int64(MinTick)
	} else if next > int64(MaxTick) {
		next = int64(MaxTick)
	}
	return int32(next), initialized
}

// HasInitializedTickAhead reports whether any initialized tick remains in the
// direction of travel from tick.
func HasInitializedTickAhead(ticks []domain.Tick, tick int32, zeroForOne bool) bool {
	if len(ticks) == 0 {
		return false
	}
	if zeroForOne {
		return ticks[0].Index <= tick
	}
	return ticks[len(ticks)-1].Index > tick
}

// FindTick returns the initialized tick at index.
func FindTick(ticks []domain.Tick, index int32) (domain.Tick, bool) {
	i := sort.Search(len(ticks), func(i int) bool { return ticks[i].Index >= index })
	if i < len(ticks) && ticks[i].Index == index {
		return ticks[i], true
	}
	return domain.Tick{}, false
}

// IsWordStart reports whether tick is the lowest tick of its bitmap word.
func IsWordStart(tick, spacing int32) bool {
	return tick%spacing == 0 && (tick/spacing)&0xff == 0
}
