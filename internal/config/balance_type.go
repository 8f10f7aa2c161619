package config

type BalanceType string

const (
	Income  BalanceType = "income"
	Outcome BalanceType = "outcome"
)

type Game string

const (
	CrashGame Game = "crash"
)

// TransactionKind tags the append-only transaction log.
type TransactionKind string

const (
	KindBet     TransactionKind = "bet"
	KindCashout TransactionKind = "cashout"
	KindLoss    TransactionKind = "loss"
)
