package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go-crashout/internal/http-server/handlers/mysql"
	"go-crashout/internal/http-server/model"
)

type RoundRepository struct {
	dbhandler mysql.Handler
}

func NewRoundRepository(dbhandler mysql.Handler) *RoundRepository {
	return &RoundRepository{dbhandler: dbhandler}
}

func (repo *RoundRepository) SaveRound(round model.Round) (int64, error) {
	const op = "repository.round.SaveRound"

	now := time.Now()

	res, err := repo.dbhandler.PrepareAndExecute(
		"INSERT INTO crash_rounds(uuid, status, crash_point, server_seed, client_seed, nonce, commit_hash, "+
			"total_bets, total_wagered, started_at, created_at, updated_at) "+
			"VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		round.UUID.String(), round.Status, round.CrashPoint, round.ServerSeed, round.ClientSeed,
		round.Nonce, round.CommitHash, round.TotalBets, round.TotalWagered, round.StartedAt, now, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (repo *RoundRepository) UpdateRound(round model.Round, samples []model.HistorySample) error {
	const op = "repository.round.UpdateRound"

	history, err := json.Marshal(samples)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now()

	_, err = repo.dbhandler.PrepareAndExecute(
		"UPDATE crash_rounds SET status = ?, total_bets = ?, total_wagered = ?, ended_at = ?, "+
			"history_samples = ?, updated_at = ? WHERE uuid = ?",
		round.Status, round.TotalBets, round.TotalWagered, round.EndedAt, history, now, round.UUID.String())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (repo *RoundRepository) GetRoundByUUID(uuid string) (*model.Round, error) {
	const op = "repository.round.GetRoundByUUID"

	const query = "SELECT id, uuid, status, crash_point, server_seed, client_seed, nonce, commit_hash, " +
		"total_bets, total_wagered, started_at, ended_at FROM crash_rounds WHERE uuid = ?"

	row, err := repo.dbhandler.PrepareAndQueryRow(query, uuid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	round := &model.Round{}

	err = row.Scan(&round.ID, &round.UUID, &round.Status, &round.CrashPoint, &round.ServerSeed,
		&round.ClientSeed, &round.Nonce, &round.CommitHash, &round.TotalBets, &round.TotalWagered,
		&round.StartedAt, &round.EndedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return round, nil
}

// ListTerminatedRounds returns recent crashed/completed rounds, newest
// first. Seeds are only ever read from terminated rows, so nothing
// unrevealed can leak through here.
func (repo *RoundRepository) ListTerminatedRounds(limit, offset int) ([]model.Round, error) {
	const op = "repository.round.ListTerminatedRounds"

	const query = "SELECT id, uuid, status, crash_point, server_seed, client_seed, nonce, commit_hash, " +
		"total_bets, total_wagered, started_at, ended_at FROM crash_rounds " +
		"WHERE status IN ('crashed', 'completed') ORDER BY id DESC LIMIT ? OFFSET ?"

	rows, err := repo.dbhandler.PrepareAndQuery(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var rounds []model.Round

	for rows.Next() {
		round := model.Round{}

		err = rows.Scan(&round.ID, &round.UUID, &round.Status, &round.CrashPoint, &round.ServerSeed,
			&round.ClientSeed, &round.Nonce, &round.CommitHash, &round.TotalBets, &round.TotalWagered,
			&round.StartedAt, &round.EndedAt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		rounds = append(rounds, round)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rounds, nil
}

func (repo *RoundRepository) SaveBet(bet model.CrashBet) (int64, error) {
	const op = "repository.round.SaveBet"

	now := time.Now()

	res, err := repo.dbhandler.PrepareAndExecute(
		"INSERT INTO crash_bets(round_uuid, user_id, wager_amount, wager_currency, settlement_asset, "+
			"settlement_amount, exchange_rate_at_bet, created_at, updated_at) "+
			"VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)",
		bet.RoundUUID.String(), bet.UserID, bet.WagerAmount, bet.WagerCurrency, bet.SettlementAsset,
		bet.SettlementAmount, bet.ExchangeRateAtBet, now, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (repo *RoundRepository) SettleBet(bet model.CrashBet) error {
	const op = "repository.round.SettleBet"

	now := time.Now()

	_, err := repo.dbhandler.PrepareAndExecute(
		"UPDATE crash_bets SET cashout_multiplier = ?, cashout_amount = ?, cashout_at = ?, "+
			"is_winner = ?, updated_at = ? WHERE round_uuid = ? AND user_id = ?",
		bet.CashoutMultiplier, bet.CashoutAmount, bet.CashoutAt, bet.IsWinner, now,
		bet.RoundUUID.String(), bet.UserID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
