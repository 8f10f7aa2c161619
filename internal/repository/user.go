package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go-crashout/internal/config"
	"go-crashout/internal/http-server/handlers/mysql"
	"go-crashout/internal/http-server/model"
)

type UserRepository struct {
	dbhandler mysql.Handler
}

func NewUserRepository(dbhandler mysql.Handler) *UserRepository {
	return &UserRepository{dbhandler: dbhandler}
}

func (repo *UserRepository) FindUserByUUID(uuid string) (*model.User, error) {
	const op = "repository.user.FindUserByUUID"

	const query = "SELECT id, uuid, username FROM users WHERE uuid = ?"

	row, err := repo.dbhandler.PrepareAndQueryRow(query, uuid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := &model.User{}

	err = row.Scan(&user.ID, &user.UUID, &user.Username)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// FindUserBalances returns the persisted balance snapshot for every asset
// the user holds. The in-memory ledger is authoritative at runtime; these
// rows only rehydrate it.
func (repo *UserRepository) FindUserBalances(userID int64) (map[config.Asset]float64, error) {
	const op = "repository.user.FindUserBalances"

	const query = "SELECT asset, balance FROM user_balances WHERE user_id = ?"

	rows, err := repo.dbhandler.PrepareAndQuery(query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	balances := make(map[config.Asset]float64)

	for rows.Next() {
		var (
			asset   config.Asset
			balance float64
		)

		if err = rows.Scan(&asset, &balance); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		balances[asset] = balance
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return balances, nil
}

func (repo *UserRepository) SaveUserBalance(userID int64, asset config.Asset, balance float64) error {
	const op = "repository.user.SaveUserBalance"

	now := time.Now()

	const query = "INSERT INTO user_balances(user_id, asset, balance, updated_at) VALUES(?, ?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE balance = VALUES(balance), updated_at = VALUES(updated_at)"

	_, err := repo.dbhandler.PrepareAndExecute(query, userID, asset, balance, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UpdateAggregates bumps the lifetime counters after a bet, cashout or
// loss. Deltas of zero leave the column unchanged.
func (repo *UserRepository) UpdateAggregates(userID int64, wagered, won, lost float64, playedDelta int) error {
	const op = "repository.user.UpdateAggregates"

	now := time.Now()

	const query = "UPDATE users SET total_wagered = total_wagered + ?, total_won = total_won + ?, " +
		"total_lost = total_lost + ?, games_played = games_played + ?, updated_at = ? WHERE id = ?"

	_, err := repo.dbhandler.PrepareAndExecute(query, wagered, won, lost, playedDelta, now, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
