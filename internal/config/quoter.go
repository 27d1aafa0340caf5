package config

import (
	"fmt"

	"github.com/andrew-solarstorm/go-packages/common"
	"github.com/gagliardetto/solana-go"
)

const (
	PartialFillAbort     = "abort"
	PartialFillPropagate = "propagate"

	// DefaultPoolProgramID seeds pool address derivation when QUOTER_POOL_PROGRAM_ID is unset.
	DefaultPoolProgramID = "vnt1u7PzorND5JjweFWmDawKe2hLWoTwHU6QKz6XX98"
)

type QuoterConfig struct {
	// MaxSteps bounds the curve walk of a single hop.
	// Default: 10000
	MaxSteps int

	// PartialFillPolicy decides what a multi-hop quote does with a truncated hop:
	// "abort" fails the quote, "propagate" feeds the smaller amount forward.
	// Default: "abort"
	PartialFillPolicy string

	// PoolProgramID is the program that owns pool addresses.
	PoolProgramID solana.PublicKey
}

func (c *QuoterConfig) Key() string {
	return QUOTER_CONFIG_KEY
}

func (c *QuoterConfig) Load() error {
	c.MaxSteps = common.GetEnvOrDefaultInt("QUOTER_MAX_STEPS", 10000)
	c.PartialFillPolicy = common.GetEnvOrDefault("QUOTER_PARTIAL_FILL_POLICY", PartialFillAbort)

	programID, err := solana.PublicKeyFromBase58(common.GetEnvOrDefault("QUOTER_POOL_PROGRAM_ID", DefaultPoolProgramID))
	if err != nil {
		return fmt.Errorf("invalid QUOTER_POOL_PROGRAM_ID: %w", err)
	}
	c.PoolProgramID = programID
	return c.Validate()
}

func (c *QuoterConfig) Validate() error {
	if c.MaxSteps <= 0 {
		return fmt.Errorf("invalid quoter config: max steps %d", c.MaxSteps)
	}
	if c.PartialFillPolicy != PartialFillAbort && c.PartialFillPolicy != PartialFillPropagate {
		return fmt.Errorf("invalid quoter config: partial fill policy %q", c.PartialFillPolicy)
	}
	if c.PoolProgramID.IsZero() {
		return fmt.Errorf("invalid quoter config: empty pool program id")
	}
	return nil
}
