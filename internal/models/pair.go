package models

import "fmt"

// UnknownName is used when the upstream omits a base-token name or symbol.
const UnknownName = "Unknown"

// TradingPair is a candidate market for a token on a DEX venue.
type TradingPair struct {
	ChainID      string  `json:"chain_id"`
	DexID        string  `json:"dex_id"`
	PairAddress  string  `json:"pair_address"`
	BaseName     string  `json:"base_name"`
	BaseSymbol   string  `json:"base_symbol"`
	BaseAddress  string  `json:"base_address"`
	QuoteSymbol  string  `json:"quote_symbol"`
	LiquidityUSD float64 `json:"liquidity_usd"`
}

// String renders the pair the way it is shown in selection prompts.
func (p TradingPair) String() string {
	return fmt.Sprintf("%s on %s | Liquidity: $%.2f | Addr: %s",
		p.BaseSymbol, p.DexID, p.LiquidityUSD, p.PairAddress)
}
