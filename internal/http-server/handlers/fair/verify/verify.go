package verify

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"golang.org/x/exp/slog"

	"go-crashout/internal/fair"
	resp "go-crashout/internal/lib/api/response"
	"go-crashout/internal/lib/logger/sl"
)

type Request struct {
	ServerSeed        string  `json:"server_seed" validate:"required"`
	ClientSeed        string  `json:"client_seed" validate:"required"`
	Nonce             int     `json:"nonce" validate:"min=0"`
	ClaimedCrashPoint float64 `json:"claimed_crash_point" validate:"required,gte=1"`
}

type Response struct {
	resp.Response
	IsValid    bool    `json:"is_valid"`
	CrashPoint float64 `json:"crash_point"`
}

type Verify struct {
	log       *slog.Logger
	validator *validator.Validate
	houseEdge float64
}

func NewVerify(log *slog.Logger, houseEdge float64) *Verify {
	return &Verify{
		log:       log,
		validator: validator.New(),
		houseEdge: houseEdge,
	}
}

// New recomputes a terminated round's crash point from its revealed seeds
// and reports whether the claimed value matches.
func (v *Verify) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.fair.verify.New"

		log := v.log.With(slog.String("op", op))

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to decode request body", http.StatusBadRequest))

			return
		}

		if err := v.validator.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("invalid request", sl.Err(err))

			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		render.JSON(w, r, Response{
			Response:   resp.OK(),
			IsValid:    fair.Verify(req.ServerSeed, req.ClientSeed, req.Nonce, v.houseEdge, req.ClaimedCrashPoint),
			CrashPoint: fair.CrashPoint(req.ServerSeed, req.ClientSeed, req.Nonce, v.houseEdge),
		})
	}
}
