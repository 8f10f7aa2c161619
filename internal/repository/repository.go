package repository

import (
	"go-crashout/internal/config"
	"go-crashout/internal/http-server/handlers/mysql"
	"go-crashout/internal/http-server/model"
)

// Repository bundles the per-table repositories over one connection. It is
// the engine's Store: every write is best-effort and retried by the caller's
// job queue, never inline with gameplay.
type Repository struct {
	Rounds       *RoundRepository
	Transactions *TransactionRepository
	Users        *UserRepository
}

func New(dbhandler mysql.Handler) *Repository {
	return &Repository{
		Rounds:       NewRoundRepository(dbhandler),
		Transactions: NewTransactionRepository(dbhandler),
		Users:        NewUserRepository(dbhandler),
	}
}

func (repo *Repository) SaveRound(round model.Round) (int64, error) {
	return repo.Rounds.SaveRound(round)
}

func (repo *Repository) UpdateRound(round model.Round, samples []model.HistorySample) error {
	return repo.Rounds.UpdateRound(round, samples)
}

func (repo *Repository) SaveBet(bet model.CrashBet) (int64, error) {
	return repo.Rounds.SaveBet(bet)
}

func (repo *Repository) SettleBet(bet model.CrashBet) error {
	return repo.Rounds.SettleBet(bet)
}

func (repo *Repository) SaveTransaction(txn model.Transaction) (int64, error) {
	return repo.Transactions.SaveTransaction(txn)
}

func (repo *Repository) SaveUserBalance(userID int64, asset config.Asset, balance float64) error {
	return repo.Users.SaveUserBalance(userID, asset, balance)
}

func (repo *Repository) UpdateAggregates(userID int64, wagered, won, lost float64, playedDelta int) error {
	return repo.Users.UpdateAggregates(userID, wagered, won, lost, playedDelta)
}
