package state

import (
	"net/http"

	"github.com/go-chi/render"
	"golang.org/x/exp/slog"

	"go-crashout/internal/engine"
	resp "go-crashout/internal/lib/api/response"
)

type Response struct {
	resp.Response
	State engine.Snapshot `json:"state"`
}

type Snapshotter interface {
	GetState() engine.Snapshot
}

type State struct {
	log    *slog.Logger
	engine Snapshotter
}

func NewState(log *slog.Logger, gameEngine Snapshotter) *State {
	return &State{
		log:    log,
		engine: gameEngine,
	}
}

// New serves the polling snapshot. The crash point and server seed are not
// part of the snapshot, so nothing unrevealed leaks to clients mid-round.
func (s *State) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, Response{
			Response: resp.OK(),
			State:    s.engine.GetState(),
		})
	}
}
