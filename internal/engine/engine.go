package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/exp/slog"

	"go-crashout/internal/config"
	"go-crashout/internal/fair"
	"go-crashout/internal/http-server/handlers/event"
	"go-crashout/internal/http-server/handlers/job"
	"go-crashout/internal/http-server/model"
	"go-crashout/internal/ledger"
)

var (
	ErrRoundNotAcceptingBets = errors.New("round is not accepting bets")
	ErrNoActiveRound         = errors.New("no active round")
	ErrCrashAlreadyOccurred  = errors.New("crash already occurred")
	ErrInvalidAmount         = errors.New("bet amount must be positive")
	ErrUnknownAsset          = errors.New("unknown asset")
)

// Store is the durable sink behind the engine. Every call may fail
// transiently; the engine dispatches writes through the job queue, logs
// failures there and keeps playing from in-memory state.
type Store interface {
	SaveRound(round model.Round) (int64, error)
	UpdateRound(round model.Round, samples []model.HistorySample) error
	SaveBet(bet model.CrashBet) (int64, error)
	SettleBet(bet model.CrashBet) error
	SaveTransaction(txn model.Transaction) (int64, error)
	SaveUserBalance(userID int64, asset config.Asset, balance float64) error
	UpdateAggregates(userID int64, wagered, won, lost float64, playedDelta int) error
}

// BetRequest arrives with the wager already converted to the settlement
// asset; currency conversion is the HTTP layer's concern.
type BetRequest struct {
	UserID int64

	Amount float64 // settlement asset units, debited from the ledger
	Asset  config.Asset

	WagerAmount   float64 // as the player placed it, in WagerCurrency
	WagerCurrency string
	ExchangeRate  float64
}

// Engine owns the round state machine. The tick, the timers and every
// player request serialize on one mutex, so "multiplier crossed the crash
// point" and "user cashed out" can never both hold for the same instant.
type Engine struct {
	log         *slog.Logger
	cfg         config.Crash
	fair        *fair.ProvablyFair
	ledger      *ledger.Ledger
	store       Store
	broadcaster event.Broadcaster

	now func() time.Time

	mu           sync.Mutex
	round        *Round
	recentPoints []float64

	stateCache *cache.Cache
}

const (
	recentPointsKept = 25
	stateCacheKey    = "state"
)

func New(
	log *slog.Logger,
	cfg config.Crash,
	provablyFair *fair.ProvablyFair,
	led *ledger.Ledger,
	store Store,
	broadcaster event.Broadcaster,
) *Engine {
	return &Engine{
		log:         log,
		cfg:         cfg,
		fair:        provablyFair,
		ledger:      led,
		store:       store,
		broadcaster: broadcaster,
		now:         time.Now,
		stateCache:  cache.New(cfg.TickInterval, time.Minute),
	}
}

// Run drives the round lifecycle until ctx is cancelled. Each cycle:
// commit a round, hold the accept window, climb until crash or the duration
// cap, settle, cool down, repeat. Cancellation finishes any in-flight
// settlement before returning.
func (e *Engine) Run(ctx context.Context) {
	for {
		e.createRound()

		select {
		case <-ctx.Done():
			e.cancelWaiting()
			return
		case <-time.After(e.cfg.AcceptWindow):
		}

		e.activate()
		e.runActive(ctx)

		if ctx.Err() != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(e.cfg.Cooldown):
		}
	}
}

func (e *Engine) runActive(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	capTimer := time.NewTimer(e.cfg.RoundDuration)
	defer capTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.terminate(StatusCompleted)
			return
		case <-capTimer.C:
			// The crash normally fires first; this bound catches a round
			// whose crash point is unreachably high.
			e.terminate(StatusCompleted)
			return
		case <-ticker.C:
			if e.tick() {
				return
			}
		}
	}
}

func (e *Engine) createRound() {
	commit := e.fair.Commit()

	round := &Round{
		ID:         uuid.New(),
		Status:     StatusWaiting,
		Commit:     commit,
		CrashPoint: e.fair.CrashPoint(commit),
		Multiplier: 1.0,
		StartedAt:  e.now(),
	}

	e.mu.Lock()
	e.round = round
	row := round.row()
	e.mu.Unlock()

	e.log.Info("round committed",
		slog.String("round_uuid", round.ID.String()),
		slog.Int("nonce", commit.Nonce))

	e.dispatchStore(&saveRoundJob{store: e.store, log: e.log, round: row})

	e.emit("roundCommitted", map[string]interface{}{
		"round_uuid":  round.ID.String(),
		"commit_hash": commit.Hash,
		"start_time":  round.StartedAt.Format(time.RFC3339),
	})
}

func (e *Engine) activate() {
	e.mu.Lock()

	round := e.round
	if round == nil || round.Status != StatusWaiting {
		e.mu.Unlock()
		return
	}

	round.Status = StatusActive
	round.ActivatedAt = e.now()
	row := round.row()

	e.mu.Unlock()

	e.log.Info("round started", slog.String("round_uuid", round.ID.String()))

	e.dispatchStore(&updateRoundJob{store: e.store, log: e.log, round: row})

	e.emit("roundStarted", map[string]interface{}{
		"round_uuid": round.ID.String(),
	})
}

// tick advances the multiplier one step. Returns true when this tick
// observed multiplier >= crashPoint and terminated the round; any cashout
// sequenced after that can only see the crashed state.
func (e *Engine) tick() bool {
	e.mu.Lock()

	round := e.round
	if round == nil || round.Status != StatusActive {
		e.mu.Unlock()
		return false
	}

	elapsed := e.now().Sub(round.ActivatedAt).Seconds()
	multiplier := math.Exp(e.cfg.GrowthRate * elapsed)

	crashed := multiplier >= round.CrashPoint
	if crashed {
		multiplier = round.CrashPoint
	}

	round.Multiplier = multiplier

	open := e.ledger.OpenEntryCount(round.ID)

	round.History = append(round.History, model.HistorySample{
		At:            e.now(),
		Multiplier:    multiplier,
		ActiveEntries: open,
	})

	if crashed {
		e.finishLocked(StatusCrashed)
		e.mu.Unlock()
		return true
	}

	roundID := round.ID
	e.mu.Unlock()

	e.emit("multiplierUpdate", map[string]interface{}{
		"round_uuid":   roundID.String(),
		"multiplier":   multiplier,
		"open_entries": open,
	})

	return false
}

func (e *Engine) terminate(status Status) {
	e.mu.Lock()
	defer e.mu.Unlock()

	round := e.round
	if round == nil || round.Status != StatusActive {
		return
	}

	e.finishLocked(status)
}

// finishLocked runs the single settlement path for both terminal states:
// freeze the round, settle every still-open entry as a loss, reveal the
// server seed. Caller holds e.mu.
func (e *Engine) finishLocked(status Status) {
	round := e.round

	round.Status = status
	endedAt := e.now()
	round.EndedAt = &endedAt

	losses := e.ledger.SettleLosses(round.ID)

	for _, entry := range losses {
		e.settleLossEntry(round, entry)
	}

	e.ledger.DropRound(round.ID)

	e.recentPoints = append(e.recentPoints, round.CrashPoint)
	if len(e.recentPoints) > recentPointsKept {
		e.recentPoints = e.recentPoints[len(e.recentPoints)-recentPointsKept:]
	}

	e.log.Info("round terminated",
		slog.String("round_uuid", round.ID.String()),
		slog.String("status", string(status)),
		slog.Float64("crash_point", round.CrashPoint),
		slog.Int("losses", len(losses)))

	e.dispatchStore(&updateRoundJob{store: e.store, log: e.log, round: round.row(), samples: round.History})

	eventName := "roundCrashed"
	if status == StatusCompleted {
		eventName = "roundCompleted"
	}

	e.emit(eventName, map[string]interface{}{
		"round_uuid":  round.ID.String(),
		"crash_point": round.CrashPoint,
		"server_seed": round.Commit.ServerSeed,
	})
}

func (e *Engine) settleLossEntry(round *Round, entry *ledger.BetEntry) {
	isWinner := false

	e.dispatchStore(&settleBetJob{store: e.store, log: e.log, bet: model.CrashBet{
		RoundUUID: round.ID,
		UserID:    entry.UserID,
		IsWinner:  &isWinner,
	}})

	e.dispatchStore(&saveTransactionJob{store: e.store, log: e.log, txn: model.Transaction{
		UserID:     entry.UserID,
		RoundUUID:  round.ID,
		Kind:       config.KindLoss,
		Amount:     entry.SettlementAmount,
		Asset:      entry.SettlementAsset,
		Multiplier: round.Multiplier,
	}})

	e.dispatchStore(&updateAggregatesJob{
		store: e.store, log: e.log,
		userID: entry.UserID, lost: entry.UsdValue(), playedDelta: 1,
	})
}

// PlaceBet debits the wager and registers the entry, valid only during the
// accept window. A registration race loses to an earlier bet and rolls the
// debit back, so balances conserve either way.
func (e *Engine) PlaceBet(req BetRequest) (*ledger.BetEntry, error) {
	if req.Amount <= 0 || req.WagerAmount <= 0 {
		return nil, ErrInvalidAmount
	}

	if !req.Asset.Valid() {
		return nil, ErrUnknownAsset
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	round := e.round
	if round == nil || round.Status != StatusWaiting {
		return nil, ErrRoundNotAcceptingBets
	}

	if err := e.ledger.TryDebit(req.UserID, req.Asset, req.Amount); err != nil {
		return nil, err
	}

	entry := &ledger.BetEntry{
		UserID:            req.UserID,
		WagerAmount:       req.WagerAmount,
		WagerCurrency:     req.WagerCurrency,
		SettlementAsset:   req.Asset,
		SettlementAmount:  req.Amount,
		ExchangeRateAtBet: req.ExchangeRate,
		PlacedAt:          e.now(),
	}

	if err := e.ledger.TryRegisterEntry(round.ID, req.UserID, entry); err != nil {
		e.ledger.Credit(req.UserID, req.Asset, req.Amount)
		return nil, err
	}

	// Wagers arrive in different currencies, so the round total and the
	// lifetime counters aggregate the USD value at the bet-time rate.
	wagerUSD := entry.UsdValue()

	round.TotalBets++
	round.TotalWagered += wagerUSD

	e.dispatchStore(&saveBetJob{store: e.store, log: e.log, bet: model.CrashBet{
		RoundUUID:         round.ID,
		UserID:            req.UserID,
		WagerAmount:       req.WagerAmount,
		WagerCurrency:     req.WagerCurrency,
		SettlementAsset:   string(req.Asset),
		SettlementAmount:  req.Amount,
		ExchangeRateAtBet: req.ExchangeRate,
	}})

	e.dispatchStore(&saveTransactionJob{store: e.store, log: e.log, txn: model.Transaction{
		UserID:     req.UserID,
		RoundUUID:  round.ID,
		Kind:       config.KindBet,
		Amount:     req.Amount,
		Asset:      req.Asset,
		Multiplier: 1,
	}})

	e.dispatchStore(&updateAggregatesJob{
		store: e.store, log: e.log,
		userID: req.UserID, wagered: wagerUSD,
	})

	e.snapshotBalance(req.UserID, req.Asset, config.Outcome, req.Amount)

	e.emit("playerBet", map[string]interface{}{
		"round_uuid": round.ID.String(),
		"user_id":    req.UserID,
		"amount":     req.WagerAmount,
		"currency":   req.WagerCurrency,
		"amount_usd": wagerUSD,
		"total_bets": round.TotalBets,
	})

	return entry, nil
}

// CashOut settles the caller's open entry as a win at the current
// multiplier. It shares the engine lock with the tick, so a cashout is
// either sequenced strictly before the crash tick or rejected.
func (e *Engine) CashOut(userID int64) (*ledger.BetEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	round := e.round
	if round == nil || round.Status == StatusWaiting {
		return nil, ErrNoActiveRound
	}

	if round.Status.Terminal() {
		return nil, ErrCrashAlreadyOccurred
	}

	entry, err := e.ledger.TrySettleWin(round.ID, userID)
	if err != nil {
		return nil, err
	}

	multiplier := round.Multiplier
	now := e.now()
	payout := entry.SettlementAmount * multiplier

	entry.CashoutMultiplier = multiplier
	entry.CashoutAmount = payout
	entry.CashoutAt = &now

	e.ledger.Credit(userID, entry.SettlementAsset, payout)

	isWinner := true

	e.dispatchStore(&settleBetJob{store: e.store, log: e.log, bet: model.CrashBet{
		RoundUUID:         round.ID,
		UserID:            userID,
		CashoutMultiplier: &entry.CashoutMultiplier,
		CashoutAmount:     &entry.CashoutAmount,
		CashoutAt:         entry.CashoutAt,
		IsWinner:          &isWinner,
	}})

	e.dispatchStore(&saveTransactionJob{store: e.store, log: e.log, txn: model.Transaction{
		UserID:     userID,
		RoundUUID:  round.ID,
		Kind:       config.KindCashout,
		Amount:     payout,
		Asset:      entry.SettlementAsset,
		Multiplier: multiplier,
	}})

	e.dispatchStore(&updateAggregatesJob{
		store: e.store, log: e.log,
		userID: userID, won: entry.UsdValue() * multiplier, playedDelta: 1,
	})

	e.snapshotBalance(userID, entry.SettlementAsset, config.Income, payout)

	e.emit("playerCashout", map[string]interface{}{
		"round_uuid": round.ID.String(),
		"user_id":    userID,
		"multiplier": multiplier,
		"payout":     payout,
		"profit":     entry.Profit(),
	})

	return entry, nil
}

// cancelWaiting unwinds an accept-window round on shutdown: every open
// entry settles as a win at 1.0x, handing the wager straight back through
// the normal cashout path so the audit log stays closed under
// bet/cashout/loss.
func (e *Engine) cancelWaiting() {
	e.mu.Lock()
	defer e.mu.Unlock()

	round := e.round
	if round == nil || round.Status != StatusWaiting {
		return
	}

	round.Status = StatusCompleted
	endedAt := e.now()
	round.EndedAt = &endedAt

	for _, entry := range e.ledger.Entries(round.ID) {
		if entry.State() != ledger.EntryOpen {
			continue
		}

		settled, err := e.ledger.TrySettleWin(round.ID, entry.UserID)
		if err != nil {
			continue
		}

		settled.CashoutMultiplier = 1.0
		settled.CashoutAmount = settled.SettlementAmount
		settled.CashoutAt = &endedAt

		e.ledger.Credit(settled.UserID, settled.SettlementAsset, settled.SettlementAmount)

		e.dispatchStore(&saveTransactionJob{store: e.store, log: e.log, txn: model.Transaction{
			UserID:     settled.UserID,
			RoundUUID:  round.ID,
			Kind:       config.KindCashout,
			Amount:     settled.SettlementAmount,
			Asset:      settled.SettlementAsset,
			Multiplier: 1,
		}})

		e.snapshotBalance(settled.UserID, settled.SettlementAsset, config.Income, settled.SettlementAmount)
	}

	e.ledger.DropRound(round.ID)

	e.dispatchStore(&updateRoundJob{store: e.store, log: e.log, round: round.row(), samples: round.History})

	e.log.Info("waiting round cancelled on shutdown", slog.String("round_uuid", round.ID.String()))
}

// GetState never mutates round state. Snapshots are cached for one tick to
// absorb polling bursts.
func (e *Engine) GetState() Snapshot {
	if cached, found := e.stateCache.Get(stateCacheKey); found {
		return cached.(Snapshot)
	}

	e.mu.Lock()

	round := e.round
	if round == nil {
		e.mu.Unlock()
		return Snapshot{}
	}

	snap := Snapshot{
		RoundID:           round.ID,
		Status:            round.Status,
		CommitHash:        round.Commit.Hash,
		Multiplier:        round.Multiplier,
		OpenEntries:       e.ledger.OpenEntryCount(round.ID),
		TotalBets:         round.TotalBets,
		TotalWagered:      round.TotalWagered,
		StartedAt:         round.StartedAt,
		RecentCrashPoints: append([]float64(nil), e.recentPoints...),
	}

	e.mu.Unlock()

	e.stateCache.Set(stateCacheKey, snap, cache.DefaultExpiration)

	return snap
}

func (e *Engine) emit(eventName string, data map[string]interface{}) {
	job.Dispatch(&job.SendEventJob{
		EventMessage: event.Message{
			Channel: event.CrashChannel,
			Event:   eventName,
			Data:    data,
		},
		Broadcaster: e.broadcaster,
	}, 0)
}

// snapshotBalance persists the post-mutation balance and notifies the
// user's balance channel, the way every balance move is reported.
func (e *Engine) snapshotBalance(userID int64, asset config.Asset, kind config.BalanceType, amount float64) {
	balance := e.ledger.Balance(userID, asset)

	e.dispatchStore(&saveBalanceJob{
		store: e.store, log: e.log,
		userID: userID, asset: asset, balance: balance,
	})

	eventName := "income-event"
	if kind == config.Outcome {
		eventName = "outcome-event"
	}

	job.Dispatch(&job.SendEventJob{
		EventMessage: event.Message{
			Channel: event.BalanceChannel,
			Event:   eventName,
			Data: map[string]interface{}{
				"user_id":        userID,
				"amount":         amount,
				"asset":          string(asset),
				"operation_type": string(kind),
				"module":         string(config.CrashGame),
				"balance":        balance,
			},
		},
		Broadcaster: e.broadcaster,
	}, 0)
}

func (e *Engine) dispatchStore(j job.Job) {
	if e.store == nil {
		return
	}

	job.Dispatch(j, 0)
}
