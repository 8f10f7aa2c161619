package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"go-crashout/internal/config"
	"go-crashout/internal/fair"
	"go-crashout/internal/http-server/handlers/event"
	"go-crashout/internal/http-server/handlers/job"
	"go-crashout/internal/http-server/model"
	"go-crashout/internal/ledger"
)

func init() {
	job.Init(256)
	job.NewWorkerPool(4, job.Queue).Start()
}

type aggregateDelta struct {
	userID      int64
	wagered     float64
	won         float64
	lost        float64
	playedDelta int
}

type fakeStore struct {
	mu           sync.Mutex
	rounds       []model.Round
	updates      []model.Round
	bets         []model.CrashBet
	settlements  []model.CrashBet
	transactions []model.Transaction
	aggregates   []aggregateDelta
}

func (s *fakeStore) SaveRound(round model.Round) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds = append(s.rounds, round)
	return int64(len(s.rounds)), nil
}

func (s *fakeStore) UpdateRound(round model.Round, _ []model.HistorySample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, round)
	return nil
}

func (s *fakeStore) SaveBet(bet model.CrashBet) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bets = append(s.bets, bet)
	return int64(len(s.bets)), nil
}

func (s *fakeStore) SettleBet(bet model.CrashBet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settlements = append(s.settlements, bet)
	return nil
}

func (s *fakeStore) SaveTransaction(txn model.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, txn)
	return int64(len(s.transactions)), nil
}

func (s *fakeStore) SaveUserBalance(int64, config.Asset, float64) error { return nil }

func (s *fakeStore) UpdateAggregates(userID int64, wagered, won, lost float64, playedDelta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregates = append(s.aggregates, aggregateDelta{userID, wagered, won, lost, playedDelta})
	return nil
}

func (s *fakeStore) wageredByUser(userID int64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0.0
	for _, d := range s.aggregates {
		if d.userID == userID {
			total += d.wagered
		}
	}
	return total
}

func (s *fakeStore) transactionsOfKind(kind config.TransactionKind) []model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Transaction
	for _, txn := range s.transactions {
		if txn.Kind == kind {
			out = append(out, txn)
		}
	}
	return out
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	messages []event.Message
}

func (b *fakeBroadcaster) TriggerEvent(m event.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, m)
	return nil
}

func (b *fakeBroadcaster) count(eventName string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, m := range b.messages {
		if m.Event == eventName {
			n++
		}
	}
	return n
}

func testConfig() config.Crash {
	return config.Crash{
		HouseEdge:     0.05,
		GrowthRate:    0.1,
		AcceptWindow:  5 * time.Second,
		TickInterval:  100 * time.Millisecond,
		RoundDuration: 60 * time.Second,
		Cooldown:      3 * time.Second,
	}
}

func newTestEngine(cfg config.Crash) (*Engine, *ledger.Ledger, *fakeStore, *fakeBroadcaster) {
	log := slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
	led := ledger.New()
	store := &fakeStore{}
	broadcaster := &fakeBroadcaster{}

	return New(log, cfg, fair.New(cfg.HouseEdge), led, store, broadcaster), led, store, broadcaster
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

// advanceTo pins the engine clock so the next tick computes exactly the
// wanted multiplier from the growth curve.
func advanceTo(e *Engine, multiplier float64) {
	activatedAt := e.round.ActivatedAt
	seconds := math.Log(multiplier) / e.cfg.GrowthRate
	frozen := activatedAt.Add(time.Duration(seconds * float64(time.Second)))
	e.now = func() time.Time { return frozen }
}

func TestPlaceBetAndCashout(t *testing.T) {
	e, led, store, _ := newTestEngine(testConfig())

	led.Credit(1, config.Bitcoin, 1000)

	e.createRound()
	e.round.CrashPoint = 2.105

	entry, err := e.PlaceBet(BetRequest{
		UserID: 1, Amount: 100, Asset: config.Bitcoin,
		WagerAmount: 100, WagerCurrency: "BTC", ExchangeRate: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryOpen, entry.State())
	assert.Equal(t, 900.0, led.Balance(1, config.Bitcoin))

	e.activate()

	advanceTo(e, 1.8)
	require.False(t, e.tick(), "1.8 is below the crash point")

	settled, err := e.CashOut(1)
	require.NoError(t, err)

	assert.InDelta(t, 1.8, settled.CashoutMultiplier, 1e-3)
	assert.InDelta(t, 180, settled.CashoutAmount, 0.1)
	assert.InDelta(t, 80, settled.Profit(), 0.1)
	assert.InDelta(t, 1080, led.Balance(1, config.Bitcoin), 0.1)

	assert.Eventually(t, func() bool {
		return len(store.transactionsOfKind(config.KindBet)) == 1 &&
			len(store.transactionsOfKind(config.KindCashout)) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestLossSettlementOnCrash(t *testing.T) {
	e, led, store, broadcaster := newTestEngine(testConfig())

	led.Credit(2, config.Ethereum, 500)

	e.createRound()
	e.round.CrashPoint = 2.105

	_, err := e.PlaceBet(BetRequest{
		UserID: 2, Amount: 100, Asset: config.Ethereum,
		WagerAmount: 100, WagerCurrency: "ETH", ExchangeRate: 1,
	})
	require.NoError(t, err)

	e.activate()

	advanceTo(e, 2.2)
	require.True(t, e.tick(), "2.2 crosses the crash point")

	assert.Equal(t, StatusCrashed, e.round.Status)
	assert.Equal(t, 2.105, e.round.Multiplier, "multiplier freezes at the crash point")
	assert.NotNil(t, e.round.EndedAt)

	// No further deduction beyond the bet debit.
	assert.Equal(t, 400.0, led.Balance(2, config.Ethereum))

	assert.Eventually(t, func() bool {
		losses := store.transactionsOfKind(config.KindLoss)
		return len(losses) == 1 && losses[0].Amount == 100
	}, time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return broadcaster.count("roundCrashed") == 1
	}, time.Second, 10*time.Millisecond)
}

func TestCashoutAfterCrashNeverPays(t *testing.T) {
	e, led, _, _ := newTestEngine(testConfig())

	led.Credit(3, config.Bitcoin, 200)

	e.createRound()
	e.round.CrashPoint = 1.5

	_, err := e.PlaceBet(BetRequest{
		UserID: 3, Amount: 50, Asset: config.Bitcoin,
		WagerAmount: 50, WagerCurrency: "BTC", ExchangeRate: 1,
	})
	require.NoError(t, err)

	e.activate()

	advanceTo(e, 1.6)
	require.True(t, e.tick())

	_, err = e.CashOut(3)
	assert.ErrorIs(t, err, ErrCrashAlreadyOccurred)
	assert.Equal(t, 150.0, led.Balance(3, config.Bitcoin), "no payout after the crash")
}

func TestCashoutStateErrors(t *testing.T) {
	e, led, _, _ := newTestEngine(testConfig())

	_, err := e.CashOut(1)
	assert.ErrorIs(t, err, ErrNoActiveRound, "before any round exists")

	led.Credit(1, config.Bitcoin, 100)
	e.createRound()

	_, err = e.CashOut(1)
	assert.ErrorIs(t, err, ErrNoActiveRound, "cashout rejected while waiting")

	e.activate()

	_, err = e.CashOut(1)
	assert.ErrorIs(t, err, ledger.ErrNoOpenBet)
}

func TestDoubleCashout(t *testing.T) {
	e, led, _, _ := newTestEngine(testConfig())

	led.Credit(4, config.Bitcoin, 100)

	e.createRound()
	e.round.CrashPoint = 100

	_, err := e.PlaceBet(BetRequest{
		UserID: 4, Amount: 10, Asset: config.Bitcoin,
		WagerAmount: 10, WagerCurrency: "BTC", ExchangeRate: 1,
	})
	require.NoError(t, err)

	e.activate()
	advanceTo(e, 1.2)
	require.False(t, e.tick())

	_, err = e.CashOut(4)
	require.NoError(t, err)

	_, err = e.CashOut(4)
	assert.ErrorIs(t, err, ledger.ErrAlreadySettled)
}

func TestPlaceBetValidation(t *testing.T) {
	e, led, _, _ := newTestEngine(testConfig())

	led.Credit(5, config.Bitcoin, 100)
	e.createRound()

	_, err := e.PlaceBet(BetRequest{UserID: 5, Amount: 0, Asset: config.Bitcoin, WagerAmount: 0, WagerCurrency: "BTC"})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = e.PlaceBet(BetRequest{UserID: 5, Amount: -10, Asset: config.Bitcoin, WagerAmount: -10, WagerCurrency: "BTC"})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = e.PlaceBet(BetRequest{UserID: 5, Amount: 10, Asset: config.Asset("DOGE"), WagerAmount: 10, WagerCurrency: "DOGE"})
	assert.ErrorIs(t, err, ErrUnknownAsset)

	_, err = e.PlaceBet(BetRequest{UserID: 5, Amount: 1000, Asset: config.Bitcoin, WagerAmount: 1000, WagerCurrency: "BTC"})
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	assert.Equal(t, 100.0, led.Balance(5, config.Bitcoin), "rejected bets leave the balance alone")
	assert.Equal(t, 0, e.round.TotalBets)

	e.activate()

	_, err = e.PlaceBet(BetRequest{UserID: 5, Amount: 10, Asset: config.Bitcoin, WagerAmount: 10, WagerCurrency: "BTC"})
	assert.ErrorIs(t, err, ErrRoundNotAcceptingBets)
}

func TestConcurrentBetsSameUser(t *testing.T) {
	e, led, _, _ := newTestEngine(testConfig())

	led.Credit(6, config.Bitcoin, 1000)
	e.createRound()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, alreadyBet := 0, 0

	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.PlaceBet(BetRequest{
				UserID: 6, Amount: 100, Asset: config.Bitcoin,
				WagerAmount: 100, WagerCurrency: "BTC", ExchangeRate: 1,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ledger.ErrAlreadyBet):
				alreadyBet++
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, succeeded, "exactly one bet wins the race")
	assert.Equal(t, 29, alreadyBet)
	assert.Equal(t, 900.0, led.Balance(6, config.Bitcoin), "exactly one debit applied")
	assert.Equal(t, 1, e.round.TotalBets)
}

func TestTotalWageredAggregatesInUsd(t *testing.T) {
	e, led, store, _ := newTestEngine(testConfig())

	// User 10 wagers 100 USD, converted at 50000 USD/BTC.
	// User 11 wagers 0.5 BTC outright, quoted at 60000 USD/BTC.
	led.Credit(10, config.Bitcoin, 1)
	led.Credit(11, config.Bitcoin, 1)

	e.createRound()

	_, err := e.PlaceBet(BetRequest{
		UserID: 10, Amount: 0.002, Asset: config.Bitcoin,
		WagerAmount: 100, WagerCurrency: "USD", ExchangeRate: 50000,
	})
	require.NoError(t, err)

	_, err = e.PlaceBet(BetRequest{
		UserID: 11, Amount: 0.5, Asset: config.Bitcoin,
		WagerAmount: 0.5, WagerCurrency: "BTC", ExchangeRate: 60000,
	})
	require.NoError(t, err)

	assert.InDelta(t, 30100, e.round.TotalWagered, 1e-6,
		"100 USD + 0.5 BTC at 60000 must not sum as raw floats")
	assert.InDelta(t, 30100, e.GetState().TotalWagered, 1e-6)

	assert.Eventually(t, func() bool {
		return math.Abs(store.wageredByUser(10)-100) < 1e-6 &&
			math.Abs(store.wageredByUser(11)-30000) < 1e-6
	}, time.Second, 10*time.Millisecond, "lifetime counters take the USD value")
}

func TestGetStateSnapshot(t *testing.T) {
	e, led, _, _ := newTestEngine(testConfig())

	led.Credit(7, config.Bitcoin, 100)
	e.createRound()

	_, err := e.PlaceBet(BetRequest{
		UserID: 7, Amount: 25, Asset: config.Bitcoin,
		WagerAmount: 25, WagerCurrency: "BTC", ExchangeRate: 1,
	})
	require.NoError(t, err)

	snap := e.GetState()

	assert.Equal(t, e.round.ID, snap.RoundID)
	assert.Equal(t, StatusWaiting, snap.Status)
	assert.Equal(t, e.round.Commit.Hash, snap.CommitHash)
	assert.Equal(t, 1.0, snap.Multiplier)
	assert.Equal(t, 1, snap.OpenEntries)
	assert.Equal(t, 25.0, snap.TotalWagered)
}

func TestCancelWaitingRefundsAtOne(t *testing.T) {
	e, led, store, _ := newTestEngine(testConfig())

	led.Credit(8, config.Ethereum, 300)
	e.createRound()

	_, err := e.PlaceBet(BetRequest{
		UserID: 8, Amount: 120, Asset: config.Ethereum,
		WagerAmount: 120, WagerCurrency: "ETH", ExchangeRate: 1,
	})
	require.NoError(t, err)
	require.Equal(t, 180.0, led.Balance(8, config.Ethereum))

	e.cancelWaiting()

	assert.Equal(t, StatusCompleted, e.round.Status)
	assert.Equal(t, 300.0, led.Balance(8, config.Ethereum), "wager handed back at 1.0x")

	assert.Eventually(t, func() bool {
		cashouts := store.transactionsOfKind(config.KindCashout)
		return len(cashouts) == 1 && cashouts[0].Multiplier == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRunLifecycle(t *testing.T) {
	cfg := config.Crash{
		HouseEdge:     0.05,
		GrowthRate:    50, // reach any crash point within a tick or two
		AcceptWindow:  20 * time.Millisecond,
		TickInterval:  5 * time.Millisecond,
		RoundDuration: time.Second,
		Cooldown:      10 * time.Millisecond,
	}

	e, _, store, broadcaster := newTestEngine(cfg)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return broadcaster.count("roundCommitted") >= 2 &&
			broadcaster.count("roundStarted") >= 2 &&
			broadcaster.count("roundCrashed") >= 1
	}, 5*time.Second, 10*time.Millisecond, "rounds must cycle on their own")

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop after cancellation")
	}

	store.mu.Lock()
	savedRounds := len(store.rounds)
	store.mu.Unlock()

	assert.GreaterOrEqual(t, savedRounds, 2)
}
