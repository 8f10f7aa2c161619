package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"go-crashout/internal/config"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadyBet          = errors.New("already placed a bet in this round")
	ErrNoOpenBet           = errors.New("no open bet found")
	ErrAlreadySettled      = errors.New("bet already settled")
)

// Ledger is the authoritative in-memory store of per-user balances and the
// per-round bet membership. Balance mutations for different users run in
// parallel; mutations for one user's account are serialized on that
// account's lock, and membership checks are folded into registration so
// there is no read-then-write window.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[int64]*account

	roundsMu sync.Mutex
	rounds   map[uuid.UUID]map[int64]*BetEntry
}

type account struct {
	mu       sync.Mutex
	balances map[config.Asset]float64
}

func New() *Ledger {
	return &Ledger{
		accounts: make(map[int64]*account),
		rounds:   make(map[uuid.UUID]map[int64]*BetEntry),
	}
}

func (l *Ledger) account(userID int64) *account {
	l.mu.RLock()
	acc, ok := l.accounts[userID]
	l.mu.RUnlock()

	if ok {
		return acc
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if acc, ok = l.accounts[userID]; ok {
		return acc
	}

	acc = &account{balances: make(map[config.Asset]float64)}
	l.accounts[userID] = acc

	return acc
}

func (l *Ledger) HasAccount(userID int64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.accounts[userID]

	return ok
}

// SeedIfAbsent hydrates an account from durable storage. A no-op when the
// in-memory account already exists, which stays authoritative.
func (l *Ledger) SeedIfAbsent(userID int64, balances map[config.Asset]float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[userID]; ok {
		return
	}

	acc := &account{balances: make(map[config.Asset]float64, len(balances))}
	for asset, balance := range balances {
		if balance < 0 {
			panic(fmt.Sprintf("ledger: negative seed balance %f for user %d", balance, userID))
		}
		acc.balances[asset] = balance
	}

	l.accounts[userID] = acc
}

func (l *Ledger) Balance(userID int64, asset config.Asset) float64 {
	acc := l.account(userID)

	acc.mu.Lock()
	defer acc.mu.Unlock()

	return acc.balances[asset]
}

func (l *Ledger) Balances(userID int64) map[config.Asset]float64 {
	acc := l.account(userID)

	acc.mu.Lock()
	defer acc.mu.Unlock()

	out := make(map[config.Asset]float64, len(acc.balances))
	for asset, balance := range acc.balances {
		out[asset] = balance
	}

	return out
}

// TryDebit atomically checks and decrements; there are no partial debits.
// A non-positive amount is a programming error, not a game outcome.
func (l *Ledger) TryDebit(userID int64, asset config.Asset, amount float64) error {
	if amount <= 0 {
		panic(fmt.Sprintf("ledger: debit of non-positive amount %f", amount))
	}

	acc := l.account(userID)

	acc.mu.Lock()
	defer acc.mu.Unlock()

	if acc.balances[asset] < amount {
		return ErrInsufficientBalance
	}

	acc.balances[asset] -= amount

	if acc.balances[asset] < 0 {
		panic(fmt.Sprintf("ledger: negative balance for user %d after debit", userID))
	}

	return nil
}

func (l *Ledger) Credit(userID int64, asset config.Asset, amount float64) {
	if amount < 0 {
		panic(fmt.Sprintf("ledger: credit of negative amount %f", amount))
	}

	acc := l.account(userID)

	acc.mu.Lock()
	defer acc.mu.Unlock()

	acc.balances[asset] += amount
}

// TryRegisterEntry inserts the user's entry into the round iff the user has
// none yet. One entry per user per round.
func (l *Ledger) TryRegisterEntry(roundID uuid.UUID, userID int64, entry *BetEntry) error {
	l.roundsMu.Lock()
	defer l.roundsMu.Unlock()

	entries, ok := l.rounds[roundID]
	if !ok {
		entries = make(map[int64]*BetEntry)
		l.rounds[roundID] = entries
	}

	if _, ok = entries[userID]; ok {
		return ErrAlreadyBet
	}

	entries[userID] = entry

	return nil
}

// TrySettleWin flips the user's open entry to settled-win and returns it so
// the caller can compute the payout. The entry can never settle twice.
func (l *Ledger) TrySettleWin(roundID uuid.UUID, userID int64) (*BetEntry, error) {
	l.roundsMu.Lock()
	defer l.roundsMu.Unlock()

	entry, ok := l.rounds[roundID][userID]
	if !ok {
		return nil, ErrNoOpenBet
	}

	if entry.state != EntryOpen {
		return nil, ErrAlreadySettled
	}

	entry.state = EntrySettledWin

	return entry, nil
}

// SettleLosses flips every still-open entry to settled-loss and returns
// them. Called exactly once, at round termination.
func (l *Ledger) SettleLosses(roundID uuid.UUID) []*BetEntry {
	l.roundsMu.Lock()
	defer l.roundsMu.Unlock()

	var losses []*BetEntry

	for _, entry := range l.rounds[roundID] {
		if entry.state == EntryOpen {
			entry.state = EntrySettledLoss
			losses = append(losses, entry)
		}
	}

	return losses
}

func (l *Ledger) OpenEntryCount(roundID uuid.UUID) int {
	l.roundsMu.Lock()
	defer l.roundsMu.Unlock()

	count := 0

	for _, entry := range l.rounds[roundID] {
		if entry.state == EntryOpen {
			count++
		}
	}

	return count
}

func (l *Ledger) Entries(roundID uuid.UUID) []*BetEntry {
	l.roundsMu.Lock()
	defer l.roundsMu.Unlock()

	entries := make([]*BetEntry, 0, len(l.rounds[roundID]))
	for _, entry := range l.rounds[roundID] {
		entries = append(entries, entry)
	}

	return entries
}

// DropRound releases the round's entry set once the round has been fully
// settled and persisted.
func (l *Ledger) DropRound(roundID uuid.UUID) {
	l.roundsMu.Lock()
	defer l.roundsMu.Unlock()

	delete(l.rounds, roundID)
}
