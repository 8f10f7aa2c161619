package ledger

import (
	"time"

	"go-crashout/internal/config"
)

type EntryState int

const (
	// EntryOpen is a live wager waiting on a cashout or the crash.
	EntryOpen EntryState = iota
	EntrySettledWin
	EntrySettledLoss
)

// BetEntry is one user's wager in one round. An entry settles exactly once:
// as a win on cashout, or as a loss when the round terminates.
type BetEntry struct {
	UserID        int64
	WagerAmount   float64 // as placed, in WagerCurrency
	WagerCurrency string

	SettlementAsset  config.Asset
	SettlementAmount float64 // debited from the ledger
	ExchangeRateAtBet float64

	PlacedAt time.Time

	CashoutMultiplier float64
	CashoutAmount     float64
	CashoutAt         *time.Time

	state EntryState
}

func (e *BetEntry) State() EntryState {
	return e.state
}

// UsdValue is the wager's worth in USD at the rate locked in when the bet
// was placed. Cross-currency aggregates always sum this, never WagerAmount.
func (e *BetEntry) UsdValue() float64 {
	return e.SettlementAmount * e.ExchangeRateAtBet
}

// Profit is the win delta in wager-currency units, zero until settled-win.
func (e *BetEntry) Profit() float64 {
	if e.state != EntrySettledWin {
		return 0
	}

	return e.WagerAmount*e.CashoutMultiplier - e.WagerAmount
}
