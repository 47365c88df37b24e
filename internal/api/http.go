// Package api exposes the HTTP control surface: provider management, manual
// rentals, health, and metrics.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spartanbot/spartanbot/internal/auth"
	"github.com/spartanbot/spartanbot/internal/metrics"
	"github.com/spartanbot/spartanbot/internal/rental"
	"github.com/spartanbot/spartanbot/pkg/providers"
)

// NewMux constructs the HTTP mux over a SpartanBot instance. Mutating
// endpoints are guarded by apiToken when one is set.
func NewMux(bot *rental.SpartanBot, apiToken string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/providers", instrument("/api/providers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, struct {
			Providers []rental.ProviderInfo `json:"providers"`
		}{Providers: bot.Providers()})
	}))

	mux.HandleFunc("GET /api/providers/supported", instrument("/api/providers/supported", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, struct {
			Types []string `json:"types"`
		}{Types: bot.SupportedRentalProviders()})
	}))

	mux.HandleFunc("POST /api/providers", auth.RequireToken(apiToken, instrument("/api/providers", func(w http.ResponseWriter, r *http.Request) {
		var cfg providers.Config
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeError(w, r.URL.Path, http.StatusBadRequest, "invalid JSON body")
			return
		}
		res, err := bot.SetupRentalProvider(r.Context(), cfg)
		if err != nil {
			writeError(w, r.URL.Path, statusFor(err), err.Error())
			return
		}
		status := http.StatusCreated
		if !res.Success {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, res)
	})))

	mux.HandleFunc("DELETE /api/providers/{uid}", auth.RequireToken(apiToken, instrument("/api/providers/{uid}", func(w http.ResponseWriter, r *http.Request) {
		if err := bot.DeleteRentalProvider(r.Context(), r.PathValue("uid")); err != nil {
			writeError(w, r.URL.Path, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	})))

	mux.HandleFunc("POST /api/rent", auth.RequireToken(apiToken, instrument("/api/rent", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Hashrate        float64 `json:"hashrate"`
			DurationSeconds int64   `json:"duration_seconds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, r.URL.Path, http.StatusBadRequest, "invalid JSON body")
			return
		}
		receipt, err := bot.ManualRental(r.Context(), body.Hashrate, time.Duration(body.DurationSeconds)*time.Second, nil)
		if err != nil {
			writeError(w, r.URL.Path, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, receipt)
	})))

	return mux
}

// statusFor maps the rental error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, rental.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, rental.ErrUnsupportedProviderType):
		return http.StatusBadRequest
	case errors.Is(err, rental.ErrNoEligibleProvider):
		return http.StatusConflict
	case errors.Is(err, rental.ErrUserCancelled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func instrument(path string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h(w, r)
		metrics.RequestDurationSeconds.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, path string, status int, msg string) {
	metrics.RequestErrorsTotal.WithLabelValues(path, strconv.Itoa(status)).Inc()
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}
