package history

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/exp/slog"

	"go-crashout/internal/http-server/model"
	resp "go-crashout/internal/lib/api/response"
	"go-crashout/internal/lib/logger/sl"
)

type Response struct {
	resp.Response
	Rounds []model.Round `json:"rounds"`
}

type ShowResponse struct {
	resp.Response
	Round model.Round `json:"round"`
}

// RoundSource reads persisted rounds.
type RoundSource interface {
	ListTerminatedRounds(limit, offset int) ([]model.Round, error)
	GetRoundByUUID(uuid string) (*model.Round, error)
}

type History struct {
	log      *slog.Logger
	roundRep RoundSource
}

func NewHistory(log *slog.Logger, roundRep RoundSource) *History {
	return &History{
		log:      log,
		roundRep: roundRep,
	}
}

// New lists terminated rounds with their revealed seeds, so players can
// verify past outcomes against the commit hashes they saw live.
func (h *History) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.crash.history.New"

		log := h.log.With(slog.String("op", op))

		limit, offset := pagination(r)

		rounds, err := h.roundRep.ListTerminatedRounds(limit, offset)
		if err != nil {
			log.Error("failed to list rounds", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to list rounds", http.StatusInternalServerError))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Rounds:   rounds,
		})
	}
}

// Show serves a single round by uuid. A round that has not terminated comes
// back with its seeds and crash point withheld; only the published commit
// hash is visible until the reveal.
func (h *History) Show() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.crash.history.Show"

		log := h.log.With(slog.String("op", op))

		round, err := h.roundRep.GetRoundByUUID(chi.URLParam(r, "uuid"))
		if err != nil {
			log.Error("failed to get round", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to get round", http.StatusInternalServerError))

			return
		}

		if round == nil {
			render.JSON(w, r, resp.ErrorCode(resp.CodeRoundNotFound, "round not found", http.StatusNotFound))

			return
		}

		render.JSON(w, r, ShowResponse{
			Response: resp.OK(),
			Round:    redactLive(*round),
		})
	}
}

// redactLive strips everything a still-running round must not reveal.
func redactLive(round model.Round) model.Round {
	if round.Status == "crashed" || round.Status == "completed" {
		return round
	}

	round.ServerSeed = ""
	round.ClientSeed = ""
	round.CrashPoint = 0

	return round
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
