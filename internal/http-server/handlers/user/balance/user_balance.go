package balance

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/exp/slog"

	"go-crashout/internal/config"
	"go-crashout/internal/http-server/model"
	"go-crashout/internal/ledger"
	resp "go-crashout/internal/lib/api/response"
	"go-crashout/internal/lib/logger/sl"
	"go-crashout/internal/repository"
)

// Interface resolves a verified user and exposes their authoritative
// balances. The ledger is hydrated lazily from the store the first time a
// user shows up after process start.
type Interface interface {
	Resolve(userUUID string) (*model.User, error)
	Balances(userID int64) map[config.Asset]float64
}

type Service struct {
	ledger  *ledger.Ledger
	userRep *repository.UserRepository
	log     *slog.Logger
}

func NewService(
	led *ledger.Ledger,
	userRep *repository.UserRepository,
	log *slog.Logger,
) *Service {
	return &Service{
		ledger:  led,
		userRep: userRep,
		log:     log,
	}
}

func (b *Service) Resolve(userUUID string) (*model.User, error) {
	const op = "handlers.user.balance.Resolve"

	user, err := b.userRep.FindUserByUUID(userUUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if user == nil {
		return nil, nil
	}

	if !b.ledger.HasAccount(user.ID) {
		balances, err := b.userRep.FindUserBalances(user.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		b.ledger.SeedIfAbsent(user.ID, balances)
	}

	return user, nil
}

func (b *Service) Balances(userID int64) map[config.Asset]float64 {
	return b.ledger.Balances(userID)
}

type balanceResponse struct {
	resp.Response
	UserUUID string                  `json:"user_uuid"`
	Balances map[config.Asset]float64 `json:"balances"`
}

// New serves the user's current balances per asset.
func (b *Service) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.user.balance.New"

		log := b.log.With(slog.String("op", op))

		userUUID := chi.URLParam(r, "uuid")

		user, err := b.Resolve(userUUID)
		if err != nil {
			log.Error("failed to resolve user", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to resolve user", http.StatusInternalServerError))

			return
		}

		if user == nil {
			render.JSON(w, r, resp.ErrorCode(resp.CodeUserNotFound, "user not found", http.StatusNotFound))

			return
		}

		render.JSON(w, r, balanceResponse{
			Response: resp.OK(),
			UserUUID: user.UUID,
			Balances: b.Balances(user.ID),
		})
	}
}

type transactionsResponse struct {
	resp.Response
	Transactions []model.Transaction `json:"transactions"`
}

// Transactions serves the user's audit log, newest first.
func (b *Service) Transactions(txnRep *repository.TransactionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.user.balance.Transactions"

		log := b.log.With(slog.String("op", op))

		user, err := b.Resolve(chi.URLParam(r, "uuid"))
		if err != nil {
			log.Error("failed to resolve user", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to resolve user", http.StatusInternalServerError))

			return
		}

		if user == nil {
			render.JSON(w, r, resp.ErrorCode(resp.CodeUserNotFound, "user not found", http.StatusNotFound))

			return
		}

		limit, offset := pagination(r)

		txns, err := txnRep.ListTransactionsByUser(user.ID, limit, offset)
		if err != nil {
			log.Error("failed to list transactions", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to list transactions", http.StatusInternalServerError))

			return
		}

		render.JSON(w, r, transactionsResponse{
			Response:     resp.OK(),
			Transactions: txns,
		})
	}
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0

	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}

	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}

	return limit, offset
}
