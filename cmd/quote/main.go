// Command quote prices a route against the pools persisted by the server.
// The server must be stopped: BoltDB holds an exclusive lock on the file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog"

	"github.com/hxuan190/quote-engine/internal/config"
	"github.com/hxuan190/quote-engine/internal/domain"
	"github.com/hxuan190/quote-engine/internal/path"
	"github.com/hxuan190/quote-engine/internal/services/market"
	"github.com/hxuan190/quote-engine/internal/services/quoter"
	"github.com/hxuan190/quote-engine/internal/services/simulator"
)

func main() {
	var (
		dbPath    = flag.String("db", "./data/pools.db", "BoltDB file with pool snapshots")
		programID = flag.String("program", config.DefaultPoolProgramID, "Program that owns pool addresses")
		tokensArg = flag.String("tokens", "", "Comma separated token path, first input to final output")
		feesArg   = flag.String("fees", "", "Comma separated fee tiers in pips, one per hop")
		amountArg = flag.String("amount", "", "Amount in smallest token units")
		mode      = flag.String("mode", "ExactIn", "ExactIn or ExactOut")
		repeat    = flag.Int("repeat", 1, "Quote the same trade N times, each starting from the previous post-trade states")
		propagate = flag.Bool("propagate", false, "Carry truncated hop amounts forward instead of failing")
		maxSteps  = flag.Int("max-steps", simulator.DefaultMaxSteps, "Curve walk step bound per hop")
	)
	flag.Parse()
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	if err := run(*dbPath, *programID, *tokensArg, *feesArg, *amountArg, *mode, *repeat, *propagate, *maxSteps); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(dbPath, programArg, tokensArg, feesArg, amountArg, mode string, repeat int, propagate bool, maxSteps int) error {
	programID, err := solana.PublicKeyFromBase58(programArg)
	if err != nil {
		return fmt.Errorf("invalid program id: %w", err)
	}

	tokens, fees, err := parseRoute(tokensArg, feesArg)
	if err != nil {
		return err
	}
	encoded, err := path.EncodeTokens(tokens, fees)
	if err != nil {
		return err
	}

	amount, err := uint256.FromDecimal(amountArg)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", amountArg, err)
	}
	if mode != "ExactIn" && mode != "ExactOut" {
		return fmt.Errorf("invalid mode %q", mode)
	}

	mkt, err := market.NewService(&config.StorageConfig{DBPath: dbPath, PersistenceEnabled: true}, programID)
	if err != nil {
		return err
	}
	if err := mkt.Start(); err != nil {
		return err
	}
	defer mkt.Stop()

	q := quoter.New(mkt, mkt, simulator.New(maxSteps), propagate)
	ctx := context.Background()

	var carried []*domain.CurveState
	for i := 0; i < repeat; i++ {
		var quote *domain.MultiHopQuote
		if mode == "ExactIn" {
			quote, err = q.QuoteExactInputStateful(ctx, encoded, amount, carried)
		} else {
			quote, err = q.QuoteExactOutputStateful(ctx, encoded, amount, carried)
		}
		if err != nil {
			return fmt.Errorf("trade %d: %w", i+1, err)
		}
		render(i+1, mode, quote)
		carried = quote.States
	}
	return nil
}

func parseRoute(tokensArg, feesArg string) ([]solana.PublicKey, []uint32, error) {
	if tokensArg == "" || feesArg == "" {
		return nil, nil, fmt.Errorf("-tokens and -fees are required")
	}

	var tokens []solana.PublicKey
	for _, s := range strings.Split(tokensArg, ",") {
		pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(s))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid token %q: %w", s, err)
		}
		tokens = append(tokens, pk)
	}

	var fees []uint32
	for _, s := range strings.Split(feesArg, ",") {
		fee, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid fee %q: %w", s, err)
		}
		fees = append(fees, uint32(fee))
	}
	return tokens, fees, nil
}

func render(n int, mode string, quote *domain.MultiHopQuote) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Trade %d (%s)", n, mode))
	impact := quote.PriceImpactBps()
	caption := fmt.Sprintf("in %s  out %s  ticks crossed %d  impact %d bps (%s)",
		quote.AmountIn().Dec(), quote.AmountOut().Dec(), quote.TotalTicksCrossed(), impact, quoter.GetPriceImpactSeverity(impact))
	if quote.Partial {
		caption += "  PARTIAL"
	}
	t.SetCaption(caption)
	t.Style().Size.WidthMax = 160
	t.AppendHeader(table.Row{"#", "Token In", "Token Out", "Fee", "Amount In", "Amount Out", "Fee Paid", "Ticks", "Impact bps", "Price After", "Status"})
	for k, hop := range quote.Hops {
		t.AppendRow(table.Row{
			k,
			short(hop.Hop.TokenIn),
			short(hop.Hop.TokenOut),
			hop.Hop.Fee,
			hop.AmountIn.Dec(),
			hop.AmountOut.Dec(),
			hop.FeeAmount.Dec(),
			hop.TicksCrossed,
			hop.PriceImpactBps,
			domain.SqrtPriceToPrice(hop.SqrtPriceX96After).StringFixed(8),
			hop.Status.String(),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 9, Align: text.AlignRight},
		{Number: 10, Align: text.AlignRight},
	})
	t.Render()
}

func short(pk solana.PublicKey) string {
	s := pk.String()
	if len(s) <= 12 {
		return s
	}
	return s[:6] + ".." + s[len(s)-4:]
}
