package engine

import (
	"time"

	"golang.org/x/exp/slog"

	"go-crashout/internal/config"
	"go-crashout/internal/http-server/handlers/job"
	"go-crashout/internal/http-server/model"
	"go-crashout/internal/lib/logger/sl"
)

// Store writes run as queue jobs so gameplay never waits on the database.
// A transient failure re-queues the job with a delay, up to maxStoreRetries.
const (
	maxStoreRetries = 3
	storeRetryDelay = 2 * time.Second
)

func retryStore(j job.Job, log *slog.Logger, op string, attempts *int, err error) {
	log.Error("store write failed", slog.String("op", op), sl.Err(err),
		slog.Int("attempt", *attempts+1))

	if *attempts < maxStoreRetries {
		*attempts++
		job.Dispatch(j, storeRetryDelay)
	}
}

type saveRoundJob struct {
	store    Store
	log      *slog.Logger
	round    model.Round
	attempts int
}

func (j *saveRoundJob) Execute() {
	if _, err := j.store.SaveRound(j.round); err != nil {
		retryStore(j, j.log, "engine.jobs.SaveRound", &j.attempts, err)
	}
}

type updateRoundJob struct {
	store    Store
	log      *slog.Logger
	round    model.Round
	samples  []model.HistorySample
	attempts int
}

func (j *updateRoundJob) Execute() {
	if err := j.store.UpdateRound(j.round, j.samples); err != nil {
		retryStore(j, j.log, "engine.jobs.UpdateRound", &j.attempts, err)
	}
}

type saveBetJob struct {
	store    Store
	log      *slog.Logger
	bet      model.CrashBet
	attempts int
}

func (j *saveBetJob) Execute() {
	if _, err := j.store.SaveBet(j.bet); err != nil {
		retryStore(j, j.log, "engine.jobs.SaveBet", &j.attempts, err)
	}
}

type settleBetJob struct {
	store    Store
	log      *slog.Logger
	bet      model.CrashBet
	attempts int
}

func (j *settleBetJob) Execute() {
	if err := j.store.SettleBet(j.bet); err != nil {
		retryStore(j, j.log, "engine.jobs.SettleBet", &j.attempts, err)
	}
}

type saveTransactionJob struct {
	store    Store
	log      *slog.Logger
	txn      model.Transaction
	attempts int
}

func (j *saveTransactionJob) Execute() {
	if _, err := j.store.SaveTransaction(j.txn); err != nil {
		retryStore(j, j.log, "engine.jobs.SaveTransaction", &j.attempts, err)
	}
}

type saveBalanceJob struct {
	store    Store
	log      *slog.Logger
	userID   int64
	asset    config.Asset
	balance  float64
	attempts int
}

func (j *saveBalanceJob) Execute() {
	if err := j.store.SaveUserBalance(j.userID, j.asset, j.balance); err != nil {
		retryStore(j, j.log, "engine.jobs.SaveUserBalance", &j.attempts, err)
	}
}

type updateAggregatesJob struct {
	store       Store
	log         *slog.Logger
	userID      int64
	wagered     float64
	won         float64
	lost        float64
	playedDelta int
	attempts    int
}

func (j *updateAggregatesJob) Execute() {
	if err := j.store.UpdateAggregates(j.userID, j.wagered, j.won, j.lost, j.playedDelta); err != nil {
		retryStore(j, j.log, "engine.jobs.UpdateAggregates", &j.attempts, err)
	}
}
