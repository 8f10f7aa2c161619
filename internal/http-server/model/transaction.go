package model

import (
	"time"

	"github.com/google/uuid"

	"go-crashout/internal/config"
)

// Transaction is one immutable row of the economic audit log, written once
// per bet, cashout or loss and never updated.
type Transaction struct {
	ID         int64                  `json:"id"`
	UserID     int64                  `json:"user_id"`
	RoundUUID  uuid.UUID              `json:"round_uuid"`
	Kind       config.TransactionKind `json:"kind"`
	Amount     float64                `json:"amount"`
	Asset      config.Asset           `json:"asset"`
	Multiplier float64                `json:"multiplier"`
	CreatedAt  time.Time              `json:"created_at"`
}
