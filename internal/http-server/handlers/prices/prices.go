package prices

import (
	"net/http"

	"github.com/go-chi/render"
	"golang.org/x/exp/slog"

	"go-crashout/internal/config"
	resp "go-crashout/internal/lib/api/response"
	"go-crashout/internal/lib/converter"
	"go-crashout/internal/lib/logger/sl"
)

type Response struct {
	resp.Response
	Prices map[string]float64 `json:"prices"`
}

type Prices struct {
	log       *slog.Logger
	converter *converter.Service
}

func NewPrices(log *slog.Logger, converterService *converter.Service) *Prices {
	return &Prices{
		log:       log,
		converter: converterService,
	}
}

// New serves the USD quote for one unit of every settleable asset, the same
// rates the bet handler applies to USD wagers.
func (p *Prices) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.prices.New"

		log := p.log.With(slog.String("op", op))

		quotes := make(map[string]float64, len(config.Assets()))

		for _, asset := range config.Assets() {
			usd, _, err := p.converter.AssetToUsd(1, asset)
			if err != nil {
				log.Error("failed to quote asset", sl.Err(err), slog.String("asset", string(asset)))

				render.JSON(w, r, resp.Error("failed to quote prices", http.StatusInternalServerError))

				return
			}

			quotes[string(asset)] = usd
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Prices:   quotes,
		})
	}
}
