package model

import (
	"time"

	"github.com/google/uuid"
)

type Round struct {
	ID           int64      `json:"id"`
	UUID         uuid.UUID  `json:"uuid"`
	Status       string     `json:"status"`
	CrashPoint   float64    `json:"crash_point"`
	ServerSeed   string     `json:"server_seed"`
	ClientSeed   string     `json:"client_seed"`
	Nonce        int        `json:"nonce"`
	CommitHash   string     `json:"commit_hash"`
	TotalBets    int        `json:"total_bets"`
	TotalWagered float64    `json:"total_wagered"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HistorySample is one multiplier snapshot of an active round, persisted as
// part of the round row for audit and replay.
type HistorySample struct {
	At            time.Time `json:"at"`
	Multiplier    float64   `json:"multiplier"`
	ActiveEntries int       `json:"active_entries"`
}
