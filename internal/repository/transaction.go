package repository

import (
	"fmt"
	"time"

	"go-crashout/internal/http-server/handlers/mysql"
	"go-crashout/internal/http-server/model"
)

type TransactionRepository struct {
	dbhandler mysql.Handler
}

func NewTransactionRepository(dbhandler mysql.Handler) *TransactionRepository {
	return &TransactionRepository{dbhandler: dbhandler}
}

// SaveTransaction appends one audit-log row. Rows are insert-only; there is
// no update path on this table.
func (repo *TransactionRepository) SaveTransaction(txn model.Transaction) (int64, error) {
	const op = "repository.transaction.SaveTransaction"

	now := time.Now()

	res, err := repo.dbhandler.PrepareAndExecute(
		"INSERT INTO crash_transactions(user_id, round_uuid, kind, amount, asset, multiplier, created_at) "+
			"VALUES(?, ?, ?, ?, ?, ?, ?)",
		txn.UserID, txn.RoundUUID.String(), txn.Kind, txn.Amount, txn.Asset, txn.Multiplier, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (repo *TransactionRepository) ListTransactionsByUser(userID int64, limit, offset int) ([]model.Transaction, error) {
	const op = "repository.transaction.ListTransactionsByUser"

	const query = "SELECT id, user_id, round_uuid, kind, amount, asset, multiplier, created_at " +
		"FROM crash_transactions WHERE user_id = ? ORDER BY id DESC LIMIT ? OFFSET ?"

	rows, err := repo.dbhandler.PrepareAndQuery(query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var txns []model.Transaction

	for rows.Next() {
		txn := model.Transaction{}

		err = rows.Scan(&txn.ID, &txn.UserID, &txn.RoundUUID, &txn.Kind, &txn.Amount,
			&txn.Asset, &txn.Multiplier, &txn.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		txns = append(txns, txn)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return txns, nil
}
