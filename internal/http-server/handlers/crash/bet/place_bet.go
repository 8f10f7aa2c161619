package bet

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"golang.org/x/exp/slog"

	"go-crashout/internal/config"
	"go-crashout/internal/engine"
	"go-crashout/internal/http-server/handlers/crash"
	"go-crashout/internal/http-server/handlers/user/balance"
	"go-crashout/internal/ledger"
	resp "go-crashout/internal/lib/api/response"
	"go-crashout/internal/lib/converter"
	"go-crashout/internal/lib/logger/sl"
)

type Request struct {
	UserUUID string  `json:"user_uuid" validate:"required"`
	Amount   float64 `json:"amount" validate:"required,gt=0"`
	Currency string  `json:"currency" validate:"required,oneof=USD BTC ETH"`
	Asset    string  `json:"asset" validate:"required,oneof=BTC ETH"`
}

type Response struct {
	resp.Response
	RoundUUID        string  `json:"round_uuid"`
	SettlementAsset  string  `json:"settlement_asset"`
	SettlementAmount float64 `json:"settlement_amount"`
	ExchangeRate     float64 `json:"exchange_rate"`
}

type BetPlacer interface {
	PlaceBet(req engine.BetRequest) (*ledger.BetEntry, error)
	GetState() engine.Snapshot
}

type Bet struct {
	log       *slog.Logger
	validator *validator.Validate
	engine    BetPlacer
	converter *converter.Service
	balance   balance.Interface
}

func NewBet(
	log *slog.Logger,
	gameEngine BetPlacer,
	converterService *converter.Service,
	balanceService balance.Interface) *Bet {
	return &Bet{
		log:       log,
		validator: validator.New(),
		engine:    gameEngine,
		converter: converterService,
		balance:   balanceService,
	}
}

func (b *Bet) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.crash.bet.New"

		log := b.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to decode request body", http.StatusBadRequest))

			return
		}

		if err := b.validator.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("invalid request", sl.Err(err))

			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		user, err := b.balance.Resolve(req.UserUUID)
		if err != nil {
			log.Error("failed to resolve user", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to resolve user", http.StatusInternalServerError))

			return
		}

		if user == nil {
			render.JSON(w, r, resp.ErrorCode(resp.CodeUserNotFound, "user not found", http.StatusNotFound))

			return
		}

		asset, err := config.ParseAsset(req.Asset)
		if err != nil {
			render.JSON(w, r, resp.ErrorCode(resp.CodeUnknownAsset, err.Error(), http.StatusBadRequest))

			return
		}

		if req.Currency != "USD" && req.Currency != req.Asset {
			render.JSON(w, r, resp.ErrorCode(resp.CodeInvalidRequest,
				"wager currency must be USD or match the settlement asset", http.StatusBadRequest))

			return
		}

		settlementAmount, rate, err := b.convert(req, asset)
		if err != nil {
			log.Error("failed to convert wager", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to convert wager", http.StatusInternalServerError))

			return
		}

		entry, err := b.engine.PlaceBet(engine.BetRequest{
			UserID:        user.ID,
			Amount:        settlementAmount,
			Asset:         asset,
			WagerAmount:   req.Amount,
			WagerCurrency: req.Currency,
			ExchangeRate:  rate,
		})
		if err != nil {
			log.Info("bet rejected", sl.Err(err), slog.Int64("user_id", user.ID))

			render.JSON(w, r, crash.MapError(err))

			return
		}

		log.Info("bet placed",
			slog.Int64("user_id", user.ID),
			slog.Float64("settlement_amount", entry.SettlementAmount),
			slog.String("asset", string(asset)))

		render.JSON(w, r, Response{
			Response:         resp.OK(),
			RoundUUID:        b.engine.GetState().RoundID.String(),
			SettlementAsset:  string(asset),
			SettlementAmount: entry.SettlementAmount,
			ExchangeRate:     entry.ExchangeRateAtBet,
		})
	}
}

// convert normalizes the wager into settlement-asset units. A USD wager is
// exchanged at the current rate; a wager already in the asset passes
// through, with the rate recorded for the audit trail.
func (b *Bet) convert(req Request, asset config.Asset) (float64, float64, error) {
	if req.Currency == "USD" {
		return b.converter.UsdToAsset(req.Amount, asset)
	}

	rate, err := b.converter.Rate(asset)
	if err != nil {
		return 0, 0, err
	}

	return converter.FormatAmount(req.Amount, asset), rate, nil
}
