// Package symbols parses NSE option symbols of the form
// <UNDERLYING><YY><MMM><STRIKE><CE|PE>, e.g. "NIFTY24JAN20000CE".
// Contract expiry is derived as the last Thursday of the named month.
package symbols

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Option is the decoded form of an NSE option symbol.
type Option struct {
	Symbol     string
	Underlying string
	Expiry     time.Time
	Strike     float64
	Class      string // "CE" or "PE"
}

var months = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// Parse decodes an NSE option symbol. Malformed symbols return an error;
// callers doing best-effort recomputation should skip them, not propagate.
func Parse(symbol string) (Option, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))

	var class string
	switch {
	case strings.HasSuffix(s, "CE"):
		class = "CE"
	case strings.HasSuffix(s, "PE"):
		class = "PE"
	default:
		return Option{}, fmt.Errorf("symbols: %q missing CE/PE suffix", symbol)
	}
	body := s[:len(s)-2]

	// Underlying = leading letters.
	i := 0
	for i < len(body) && body[i] >= 'A' && body[i] <= 'Z' {
		i++
	}
	if i == 0 {
		return Option{}, fmt.Errorf("symbols: %q has no underlying", symbol)
	}
	underlying := body[:i]
	rest := body[i:]

	// Two-digit year, assumed 2000+YY.
	if len(rest) < 2 {
		return Option{}, fmt.Errorf("symbols: %q truncated after underlying", symbol)
	}
	yy, err := strconv.Atoi(rest[:2])
	if err != nil {
		return Option{}, fmt.Errorf("symbols: %q bad year: %w", symbol, err)
	}
	rest = rest[2:]

	// Three-letter month.
	if len(rest) < 3 {
		return Option{}, fmt.Errorf("symbols: %q truncated before month", symbol)
	}
	month, ok := months[rest[:3]]
	if !ok {
		return Option{}, fmt.Errorf("symbols: %q bad month %q", symbol, rest[:3])
	}
	rest = rest[3:]

	// Numeric strike, everything that remains.
	if rest == "" {
		return Option{}, fmt.Errorf("symbols: %q missing strike", symbol)
	}
	strike, err := strconv.ParseFloat(rest, 64)
	if err != nil || strike <= 0 {
		return Option{}, fmt.Errorf("symbols: %q bad strike %q", symbol, rest)
	}

	return Option{
		Symbol:     s,
		Underlying: underlying,
		Expiry:     LastThursday(2000+yy, month),
		Strike:     strike,
		Class:      class,
	}, nil
}

// Underlying is a convenience wrapper returning just the underlying of a
// symbol, or "" if the symbol does not parse.
func Underlying(symbol string) string {
	opt, err := Parse(symbol)
	if err != nil {
		return ""
	}
	return opt.Underlying
}

// LastThursday returns the last Thursday of the given month (monthly expiry
// convention), at 15:30 IST converted to UTC.
func LastThursday(year int, month time.Month) time.Time {
	ist := time.FixedZone("IST", 5*3600+1800)
	// Last day of the month, then walk back to Thursday.
	d := time.Date(year, month+1, 1, 15, 30, 0, 0, ist).AddDate(0, 0, -1)
	for d.Weekday() != time.Thursday {
		d = d.AddDate(0, 0, -1)
	}
	return d.UTC()
}
