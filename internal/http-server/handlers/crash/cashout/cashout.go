package cashout

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"golang.org/x/exp/slog"

	"go-crashout/internal/http-server/handlers/crash"
	"go-crashout/internal/http-server/handlers/user/balance"
	"go-crashout/internal/ledger"
	resp "go-crashout/internal/lib/api/response"
	"go-crashout/internal/lib/logger/sl"
)

type Request struct {
	UserUUID string `json:"user_uuid" validate:"required"`
}

type Response struct {
	resp.Response
	Multiplier float64 `json:"multiplier"`
	Payout     float64 `json:"payout"`
	Profit     float64 `json:"profit"`
	Asset      string  `json:"asset"`
}

type CashOuter interface {
	CashOut(userID int64) (*ledger.BetEntry, error)
}

type Cashout struct {
	log       *slog.Logger
	validator *validator.Validate
	engine    CashOuter
	balance   balance.Interface
}

func NewCashout(
	log *slog.Logger,
	gameEngine CashOuter,
	balanceService balance.Interface) *Cashout {
	return &Cashout{
		log:       log,
		validator: validator.New(),
		engine:    gameEngine,
		balance:   balanceService,
	}
}

func (c *Cashout) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.crash.cashout.New"

		log := c.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to decode request body", http.StatusBadRequest))

			return
		}

		if err := c.validator.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("invalid request", sl.Err(err))

			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		user, err := c.balance.Resolve(req.UserUUID)
		if err != nil {
			log.Error("failed to resolve user", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to resolve user", http.StatusInternalServerError))

			return
		}

		if user == nil {
			render.JSON(w, r, resp.ErrorCode(resp.CodeUserNotFound, "user not found", http.StatusNotFound))

			return
		}

		entry, err := c.engine.CashOut(user.ID)
		if err != nil {
			log.Info("cashout rejected", sl.Err(err), slog.Int64("user_id", user.ID))

			render.JSON(w, r, crash.MapError(err))

			return
		}

		log.Info("cashout settled",
			slog.Int64("user_id", user.ID),
			slog.Float64("multiplier", entry.CashoutMultiplier),
			slog.Float64("payout", entry.CashoutAmount))

		render.JSON(w, r, Response{
			Response:   resp.OK(),
			Multiplier: entry.CashoutMultiplier,
			Payout:     entry.CashoutAmount,
			Profit:     entry.Profit(),
			Asset:      string(entry.SettlementAsset),
		})
	}
}
