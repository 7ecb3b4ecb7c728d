package settings

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Setting keys
const (
	KeyMainCurrency        = "main_currency"
	KeySecondaryCurrency   = "secondary_currency"
	KeySupportedCurrencies = "supported_currencies"
	KeyIntradayEnabled     = "intraday_enabled"
)

// Defaults
const (
	DefaultMainCurrency      = "USD"
	DefaultSecondaryCurrency = "EUR"
)

// DefaultSupportedCurrencies is the initial supported currency set.
var DefaultSupportedCurrencies = []string{"USD", "EUR", "GBP", "PLN"}

// mainCurrencies restricts main currency selection. All stored valuation
// totals are computed in the main currency, so it stays within the pair the
// FX bootstrap guarantees rates for.
var mainCurrencies = map[string]bool{"USD": true, "EUR": true}

// Service provides typed access to user preferences with defaults.
// Implements domain.SettingsReader.
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new settings service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "settings").Logger(),
	}
}

// GetMainCurrency returns the main display currency (USD or EUR)
func (s *Service) GetMainCurrency() string {
	value, ok, err := s.repo.Get(KeyMainCurrency)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read main currency, using default")
		return DefaultMainCurrency
	}
	if !ok || !mainCurrencies[value] {
		return DefaultMainCurrency
	}
	return value
}

// SetMainCurrency updates the main currency. Only USD and EUR are accepted.
func (s *Service) SetMainCurrency(currency string) error {
	currency = strings.ToUpper(currency)
	if !mainCurrencies[currency] {
		return fmt.Errorf("main currency must be USD or EUR, got %s", currency)
	}
	return s.repo.Set(KeyMainCurrency, currency)
}

// GetSecondaryCurrency returns the secondary display currency
func (s *Service) GetSecondaryCurrency() string {
	value, ok, err := s.repo.Get(KeySecondaryCurrency)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read secondary currency, using default")
		return DefaultSecondaryCurrency
	}
	if !ok || value == "" {
		return DefaultSecondaryCurrency
	}
	return value
}

// SetSecondaryCurrency updates the secondary currency
func (s *Service) SetSecondaryCurrency(currency string) error {
	return s.repo.Set(KeySecondaryCurrency, strings.ToUpper(currency))
}

// GetSupportedCurrencies returns the supported currency set
func (s *Service) GetSupportedCurrencies() []string {
	value, ok, err := s.repo.Get(KeySupportedCurrencies)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read supported currencies, using defaults")
		return append([]string(nil), DefaultSupportedCurrencies...)
	}
	if !ok || value == "" {
		return append([]string(nil), DefaultSupportedCurrencies...)
	}

	parts := strings.Split(value, ",")
	currencies := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			currencies = append(currencies, p)
		}
	}
	if len(currencies) == 0 {
		return append([]string(nil), DefaultSupportedCurrencies...)
	}
	return currencies
}

// SetSupportedCurrencies replaces the supported currency set
func (s *Service) SetSupportedCurrencies(currencies []string) error {
	return s.repo.Set(KeySupportedCurrencies, strings.Join(currencies, ","))
}

// IsIntradayEnabled reports whether the hourly intraday price timer is active
func (s *Service) IsIntradayEnabled() bool {
	value, ok, err := s.repo.Get(KeyIntradayEnabled)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read intraday flag, defaulting to enabled")
		return true
	}
	if !ok {
		return true
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return true
	}
	return enabled
}

// SetIntradayEnabled toggles the intraday price timer
func (s *Service) SetIntradayEnabled(enabled bool) error {
	return s.repo.Set(KeyIntradayEnabled, strconv.FormatBool(enabled))
}
