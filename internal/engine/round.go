package engine

import (
	"time"

	"github.com/google/uuid"

	"go-crashout/internal/fair"
	"go-crashout/internal/http-server/model"
)

type Status string

const (
	// StatusWaiting is the accept window: bets open, multiplier parked at 1.0.
	StatusWaiting Status = "waiting"
	// StatusActive is the climb: cashouts open, bets closed.
	StatusActive Status = "active"
	// StatusCrashed and StatusCompleted are terminal within a cycle.
	StatusCrashed   Status = "crashed"
	StatusCompleted Status = "completed"
)

func (s Status) Terminal() bool {
	return s == StatusCrashed || s == StatusCompleted
}

// Round is the single authoritative round object. All mutation happens
// under the engine's lock; nothing outside the engine holds a reference.
type Round struct {
	ID     uuid.UUID
	Status Status

	Commit     fair.SeedCommit
	CrashPoint float64

	Multiplier float64

	StartedAt   time.Time
	ActivatedAt time.Time
	EndedAt     *time.Time

	TotalBets    int
	TotalWagered float64 // USD, at each wager's bet-time rate

	History []model.HistorySample
}

func (r *Round) row() model.Round {
	return model.Round{
		UUID:         r.ID,
		Status:       string(r.Status),
		CrashPoint:   r.CrashPoint,
		ServerSeed:   r.Commit.ServerSeed,
		ClientSeed:   r.Commit.ClientSeed,
		Nonce:        r.Commit.Nonce,
		CommitHash:   r.Commit.Hash,
		TotalBets:    r.TotalBets,
		TotalWagered: r.TotalWagered,
		StartedAt:    r.StartedAt,
		EndedAt:      r.EndedAt,
	}
}

// Snapshot is the read-only view served to polling clients. The crash point
// and server seed stay hidden until the round terminates.
type Snapshot struct {
	RoundID           uuid.UUID `json:"round_uuid"`
	Status            Status    `json:"status"`
	CommitHash        string    `json:"commit_hash"`
	Multiplier        float64   `json:"multiplier"`
	OpenEntries       int       `json:"open_entries"`
	TotalBets         int       `json:"total_bets"`
	TotalWagered      float64   `json:"total_wagered"`
	StartedAt         time.Time `json:"started_at"`
	RecentCrashPoints []float64 `json:"recent_crash_points"`
}
