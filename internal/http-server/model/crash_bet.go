package model

import (
	"time"

	"github.com/google/uuid"
)

type CrashBet struct {
	ID                int64      `json:"id"`
	RoundUUID         uuid.UUID  `json:"round_uuid"`
	UserID            int64      `json:"user_id"`
	WagerAmount       float64    `json:"wager_amount"`
	WagerCurrency     string     `json:"wager_currency"`
	SettlementAsset   string     `json:"settlement_asset"`
	SettlementAmount  float64    `json:"settlement_amount"`
	ExchangeRateAtBet float64    `json:"exchange_rate_at_bet"`
	CashoutMultiplier *float64   `json:"cashout_multiplier"`
	CashoutAmount     *float64   `json:"cashout_amount"`
	CashoutAt         *time.Time `json:"cashout_at"`
	IsWinner          *bool      `json:"is_winner"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
