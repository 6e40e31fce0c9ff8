// Package pricing provides the option Greeks provider consumed by the risk
// engine, plus day-count helpers. The engine treats the provider as a black
// box; BlackScholes is the default implementation.
package pricing

import (
	"time"

	"risk-systemv1/internal/model"
)

// Provider computes option Greeks for a single contract.
type Provider interface {
	ComputeGreeks(spot, strike, timeToExpiryYears, riskFreeRate, volatility, dividendYield float64, class model.OptionClass) model.Greeks
}

// DaysToExpiry returns the number of days (fractional) until expiry.
// Expired contracts return 0.
func DaysToExpiry(expiry time.Time) float64 {
	d := time.Until(expiry).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

// DaysToYears converts calendar days to years on a 365-day count.
func DaysToYears(days float64) float64 {
	return days / 365.0
}
