package converter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/exp/slog"

	"go-crashout/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewService(discardLogger(), config.Prices{
		BaseURL: srv.URL,
		Timeout: time.Second,
		TTL:     30 * time.Second,
	})
}

func quotes(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"bitcoin":{"usd":50000},"ethereum":{"usd":2500}}`))
}

func TestUsdToAsset(t *testing.T) {
	t.Parallel()

	s := newTestService(t, quotes)

	amount, rate, err := s.UsdToAsset(100, config.Bitcoin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rate != 50000 {
		t.Errorf("unexpected rate, want: 50000, got: %f", rate)
	}

	if amount != 0.002 {
		t.Errorf("unexpected amount, want: 0.002, got: %f", amount)
	}
}

func TestAssetToUsd(t *testing.T) {
	t.Parallel()

	s := newTestService(t, quotes)

	usd, rate, err := s.AssetToUsd(2, config.Ethereum)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rate != 2500 {
		t.Errorf("unexpected rate, want: 2500, got: %f", rate)
	}

	if usd != 5000 {
		t.Errorf("unexpected usd amount, want: 5000, got: %f", usd)
	}
}

func TestRateCaching(t *testing.T) {
	t.Parallel()

	calls := 0

	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		quotes(w, r)
	})

	for i := 0; i < 5; i++ {
		if _, err := s.Rate(config.Bitcoin); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if calls != 1 {
		t.Errorf("expected a single upstream call within the TTL, got %d", calls)
	}
}

func TestFallbackRatesOnUpstreamFailure(t *testing.T) {
	t.Parallel()

	s := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	rate, err := s.Rate(config.Bitcoin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rate != 60000 {
		t.Errorf("expected fallback rate 60000, got %f", rate)
	}
}

func TestRateUnknownAsset(t *testing.T) {
	t.Parallel()

	s := newTestService(t, quotes)

	if _, err := s.Rate(config.Asset("DOGE")); err == nil {
		t.Error("expected an error for an unknown asset")
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		name   string
		amount float64
		asset  config.Asset
		want   float64
	}{
		{
			name:   "BitcoinEightDecimals",
			amount: 0.123456789,
			asset:  config.Bitcoin,
			want:   0.12345679,
		},
		{
			name:   "BitcoinExact",
			amount: 0.5,
			asset:  config.Bitcoin,
			want:   0.5,
		},
		{
			name:   "Zero",
			amount: 0,
			asset:  config.Ethereum,
			want:   0,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := FormatAmount(tc.amount, tc.asset)
			if got != tc.want {
				t.Errorf("unexpected result, want: %v, got: %v", tc.want, got)
			}
		})
	}
}
