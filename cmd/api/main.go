package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/websocket"
	"github.com/pusher/pusher-http-go/v5"
	"golang.org/x/exp/slog"

	"go-crashout/internal/config"
	"go-crashout/internal/engine"
	"go-crashout/internal/fair"
	"go-crashout/internal/http-server/handlers/crash/bet"
	"go-crashout/internal/http-server/handlers/crash/cashout"
	"go-crashout/internal/http-server/handlers/crash/history"
	"go-crashout/internal/http-server/handlers/crash/state"
	"go-crashout/internal/http-server/handlers/event"
	"go-crashout/internal/http-server/handlers/fair/verify"
	"go-crashout/internal/http-server/handlers/job"
	"go-crashout/internal/http-server/handlers/mysql"
	"go-crashout/internal/http-server/handlers/prices"
	"go-crashout/internal/http-server/handlers/user/balance"
	mwlogger "go-crashout/internal/http-server/middleware/logger"
	"go-crashout/internal/ledger"
	"go-crashout/internal/lib/converter"
	"go-crashout/internal/lib/logger/handler/slogpretty"
	"go-crashout/internal/lib/logger/sl"
	"go-crashout/internal/repository"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

const (
	jobQueueBuffer  = 256
	jobWorkers      = 4
	shutdownTimeout = 5 * time.Second
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("starting api server", slog.String("env", cfg.Env))
	log.Debug("debug messages are enabled")

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	if err = db.Ping(); err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	dbhandler := mysql.New(db)

	repo := repository.New(*dbhandler)

	job.Init(jobQueueBuffer)
	job.NewWorkerPool(jobWorkers, job.Queue).Start()

	broadcaster, closeBroadcaster, err := setupBroadcaster(log, cfg)
	if err != nil {
		log.Error("failed to init broadcaster", sl.Err(err))
		os.Exit(1)
	}
	defer closeBroadcaster()

	led := ledger.New()
	provablyFair := fair.New(cfg.Crash.HouseEdge)

	gameEngine := engine.New(log, cfg.Crash, provablyFair, led, repo, broadcaster)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engineDone := make(chan struct{})

	go func() {
		gameEngine.Run(ctx)
		close(engineDone)
	}()

	converterService := converter.NewService(log, cfg.Prices)
	balanceService := balance.NewService(led, repo.Users, log)

	placeBet := bet.NewBet(log, gameEngine, converterService, balanceService)
	cashOut := cashout.NewCashout(log, gameEngine, balanceService)
	roundState := state.NewState(log, gameEngine)
	roundHistory := history.NewHistory(log, repo.Rounds)
	verifyFair := verify.NewVerify(log, cfg.Crash.HouseEdge)
	assetPrices := prices.NewPrices(log, converterService)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(mwlogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	router.Route("/api", func(r chi.Router) {
		r.Post("/crash/bet", placeBet.New())
		r.Post("/crash/cashout", cashOut.New())
		r.Get("/crash/state", roundState.New())
		r.Get("/crash/rounds", roundHistory.New())
		r.Get("/crash/rounds/{uuid}", roundHistory.Show())
		r.Get("/prices", assetPrices.New())
		r.Post("/fair/verify", verifyFair.New())
		r.Get("/user/{uuid}/balance", balanceService.New())
		r.Get("/user/{uuid}/transactions", balanceService.Transactions(repo.Transactions))
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", sl.Err(err))
			stop()
		}
	}()

	log.Info("server started", slog.String("address", cfg.HTTPServer.Address))

	<-ctx.Done()

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shut down server", sl.Err(err))
	}

	// the engine refunds any open bets before it exits
	<-engineDone

	log.Info("server stopped")
}

// setupBroadcaster picks the event transport by config: a websocket
// connection into the hub process, or Pusher Channels.
func setupBroadcaster(log *slog.Logger, cfg *config.Config) (event.Broadcaster, func(), error) {
	if cfg.Broadcast.Driver == "pusher" {
		client := &pusher.Client{
			AppID:   cfg.Pusher.AppID,
			Key:     cfg.Pusher.Key,
			Secret:  cfg.Pusher.Secret,
			Cluster: cfg.Pusher.Cluster,
		}

		return event.NewPusherEvent(log, client), func() {}, nil
	}

	conn, _, err := websocket.DefaultDialer.Dial(cfg.Broadcast.HubURL, nil)
	if err != nil {
		return nil, nil, err
	}

	// publishing subscribes this connection at the hub, so drain the echoes
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	return event.NewHubEvent(log, conn), func() { conn.Close() }, nil
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlogLogger()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return log
}

func setupPrettySlogLogger() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	return slog.New(opts.NewPrettyHandler(os.Stdout))
}
