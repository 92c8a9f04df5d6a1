package collector

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/johnayoung/solana-candle-scraper/internal/models"
)

// DefaultChainID is the chain discovered pairs are filtered to.
const DefaultChainID = "solana"

// FilterChain keeps pairs on chainID and sorts them by liquidity, highest
// first. Pairs with equal liquidity keep their upstream order.
func FilterChain(pairs []models.TradingPair, chainID string) []models.TradingPair {
	out := make([]models.TradingPair, 0, len(pairs))
	for _, p := range pairs {
		if p.ChainID == chainID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LiquidityUSD > out[j].LiquidityUSD
	})
	return out
}

// SelectPair resolves a 1-based choice against the sorted candidates. An
// empty choice picks the first pair. ok is false when the choice could not
// be used and the first pair was picked instead.
func SelectPair(candidates []models.TradingPair, choice string) (pair models.TradingPair, ok bool, err error) {
	if len(candidates) == 0 {
		return models.TradingPair{}, false, fmt.Errorf("no candidate pairs")
	}

	choice = strings.TrimSpace(choice)
	if choice == "" {
		return candidates[0], true, nil
	}

	n, convErr := strconv.Atoi(choice)
	if convErr != nil || n < 1 || n > len(candidates) {
		return candidates[0], false, nil
	}
	return candidates[n-1], true, nil
}
