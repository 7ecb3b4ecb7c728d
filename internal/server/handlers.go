package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// handleCurrentPrice returns the cached current price
func (s *Server) handleCurrentPrice(w http.ResponseWriter, r *http.Request) {
	price, err := s.cfg.PriceService.GetCurrentPrice()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to read current price")
		respondError(w, http.StatusInternalServerError, "failed to read current price")
		return
	}
	if price == nil {
		respondError(w, http.StatusNotFound, "no price available yet")
		return
	}

	respondJSON(w, http.StatusOK, price)
}

// handlePriceHistory returns daily OHLC buckets, newest first
func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30)

	series, err := s.cfg.PriceRepo.ListDaily(days)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to read price history")
		respondError(w, http.StatusInternalServerError, "failed to read price history")
		return
	}

	respondJSON(w, http.StatusOK, series)
}

// handleIntradayPrices returns intraday points for the last N hours
func (s *Server) handleIntradayPrices(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 24)

	points, err := s.cfg.PriceRepo.ListIntraday(time.Now().Add(-time.Duration(hours) * time.Hour))
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to read intraday prices")
		respondError(w, http.StatusInternalServerError, "failed to read intraday prices")
		return
	}

	respondJSON(w, http.StatusOK, points)
}

// handlePriceAnalytics returns moving averages and volatility
func (s *Server) handlePriceAnalytics(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30)

	analytics, err := s.cfg.PriceService.GetAnalytics(days)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to compute analytics")
		respondError(w, http.StatusInternalServerError, "failed to compute analytics")
		return
	}

	respondJSON(w, http.StatusOK, analytics)
}

// handleListRates returns all stored exchange rates
func (s *Server) handleListRates(w http.ResponseWriter, r *http.Request) {
	list, err := s.cfg.RateRepo.List()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list rates")
		respondError(w, http.StatusInternalServerError, "failed to list rates")
		return
	}

	respondJSON(w, http.StatusOK, list)
}

// handleResolveRate resolves a conversion rate. Never fails: the resolver
// degrades through its fallback chain.
func (s *Server) handleResolveRate(w http.ResponseWriter, r *http.Request) {
	from := strings.ToUpper(chi.URLParam(r, "from"))
	to := strings.ToUpper(chi.URLParam(r, "to"))

	rate := s.cfg.Resolver.Resolve(from, to)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"from": from,
		"to":   to,
		"rate": rate,
	})
}

// handleSnapshot returns the cached portfolio snapshot, computing one if
// none exists yet
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.cfg.Engine.GetSnapshot()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to get snapshot")
		respondError(w, http.StatusInternalServerError, "failed to get snapshot")
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

// handleRecompute triggers a snapshot recompute.
// mode=debounced schedules a coalesced recompute, mode=rate-limited runs one
// unless throttled, mode=now (default) recomputes synchronously.
func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("mode") {
	case "debounced":
		s.cfg.Triggers.TriggerDebouncedRecompute()
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})

	case "rate-limited":
		if s.cfg.Triggers.TriggerRateLimitedRecompute() {
			respondJSON(w, http.StatusOK, map[string]string{"status": "recomputed"})
		} else {
			respondJSON(w, http.StatusOK, map[string]string{"status": "throttled"})
		}

	default:
		snapshot, err := s.cfg.Engine.Recompute(nil)
		if err != nil {
			s.log.Error().Err(err).Msg("Recompute failed")
			respondError(w, http.StatusInternalServerError, "recompute failed")
			return
		}
		respondJSON(w, http.StatusOK, snapshot)
	}
}

// handleSchedulerStatus reports the scheduler and per-feed timer state
func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.cfg.Scheduler.Status())
}

// handleUpdateNow performs an immediate price refresh
func (s *Server) handleUpdateNow(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Scheduler.UpdateNow(); err != nil {
		s.log.Error().Err(err).Msg("Manual update failed")
		respondError(w, http.StatusBadGateway, "update failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// settingsResponse mirrors the settings the UI can change
type settingsResponse struct {
	MainCurrency        string   `json:"main_currency"`
	SecondaryCurrency   string   `json:"secondary_currency"`
	SupportedCurrencies []string `json:"supported_currencies"`
	IntradayEnabled     bool     `json:"intraday_enabled"`
}

// handleGetSettings returns current preferences
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, settingsResponse{
		MainCurrency:        s.cfg.Settings.GetMainCurrency(),
		SecondaryCurrency:   s.cfg.Settings.GetSecondaryCurrency(),
		SupportedCurrencies: s.cfg.Settings.GetSupportedCurrencies(),
		IntradayEnabled:     s.cfg.Settings.IsIntradayEnabled(),
	})
}

// updateSettingsRequest carries partial settings updates
type updateSettingsRequest struct {
	MainCurrency        *string   `json:"main_currency,omitempty"`
	SecondaryCurrency   *string   `json:"secondary_currency,omitempty"`
	SupportedCurrencies *[]string `json:"supported_currencies,omitempty"`
	IntradayEnabled     *bool     `json:"intraday_enabled,omitempty"`
}

// handleUpdateSettings applies preference changes and triggers a debounced
// recompute so display currencies take effect
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.MainCurrency != nil {
		if err := s.cfg.Settings.SetMainCurrency(*req.MainCurrency); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.SecondaryCurrency != nil {
		if err := s.cfg.Settings.SetSecondaryCurrency(*req.SecondaryCurrency); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to update secondary currency")
			return
		}
	}
	if req.SupportedCurrencies != nil {
		if err := s.cfg.Settings.SetSupportedCurrencies(*req.SupportedCurrencies); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to update supported currencies")
			return
		}
	}
	if req.IntradayEnabled != nil {
		if err := s.cfg.Settings.SetIntradayEnabled(*req.IntradayEnabled); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to update intraday flag")
			return
		}
	}

	s.cfg.Triggers.TriggerDebouncedRecompute()

	s.handleGetSettings(w, r)
}

// queryInt parses an integer query parameter with a default
func queryInt(r *http.Request, key string, defaultValue int) int {
	if value := r.URL.Query().Get(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}
