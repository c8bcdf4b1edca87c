// Package price parses and renders the amounts and durations players type on
// market signs.
package price

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// ErrInvalidFormat is returned for input that is not a price or duration.
var ErrInvalidFormat = errors.New("invalid format")

// maxAmount is the largest price ParsePrice accepts.
const maxAmount = 1_000_000_000_000_000

var multipliers = map[byte]int64{
	'k': 1e3,
	'm': 1e6,
	'b': 1e9,
}

// ParsePrice turns text like "$50,000", "50k" or "1.5M" into a whole amount.
// Fractions of a unit left after the multiplier are dropped, so "1.2345k" is
// 1234.
func ParsePrice(text string) (int64, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(text))
	cleaned = strings.ToLower(cleaned)
	if cleaned == "" {
		return 0, fmt.Errorf("%w: empty price", ErrInvalidFormat)
	}

	mult := int64(1)
	if m, ok := multipliers[cleaned[len(cleaned)-1]]; ok {
		mult = m
		cleaned = cleaned[:len(cleaned)-1]
	}
	if !isDecimal(cleaned) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidFormat, text)
	}

	whole, frac, _ := strings.Cut(cleaned, ".")
	var w int64
	if whole != "" {
		var err error
		w, err = strconv.ParseInt(whole, 10, 64)
		if err != nil || w > maxAmount/mult {
			return 0, fmt.Errorf("%w: %q is too large", ErrInvalidFormat, text)
		}
	}

	// Only as many fraction digits as the multiplier has zeros can add whole
	// units; the rest are truncated.
	places := len(strconv.FormatInt(mult, 10)) - 1
	if len(frac) > places {
		frac = frac[:places]
	}
	var f int64
	if frac != "" {
		f, _ = strconv.ParseInt(frac+strings.Repeat("0", places-len(frac)), 10, 64)
	}

	v := w*mult + f
	if v > maxAmount {
		return 0, fmt.Errorf("%w: %q is too large", ErrInvalidFormat, text)
	}
	return v, nil
}

// isDecimal accepts digits with at most one decimal point.
func isDecimal(s string) bool {
	digits, dots := 0, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

// maxDuration bounds ParseDuration well inside time.Duration's range.
const maxDuration = 100 * 365 * 24 * time.Hour

var units = map[rune]time.Duration{
	'd': 24 * time.Hour,
	'h': time.Hour,
	'm': time.Minute,
	's': time.Second,
}

// segment converts v units into a Duration, refusing anything past maxDuration.
func segment(text string, v float64, unit time.Duration) (time.Duration, error) {
	if v*float64(unit) > float64(maxDuration) {
		return 0, fmt.Errorf("%w: %q is too long", ErrInvalidFormat, text)
	}
	return time.Duration(v * float64(unit)), nil
}

// ParseDuration reads composite durations such as "2d12h", "48h" or "90m".
// A bare number is taken as hours. Any other letter following a number is an
// error; separators between segments are ignored.
func ParseDuration(text string) (time.Duration, error) {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	if cleaned == "" {
		return 0, fmt.Errorf("%w: empty duration", ErrInvalidFormat)
	}

	var (
		total time.Duration
		num   strings.Builder
	)
	for _, c := range cleaned {
		if (c >= '0' && c <= '9') || c == '.' {
			num.WriteRune(c)
			continue
		}
		if num.Len() == 0 {
			continue
		}
		v, err := strconv.ParseFloat(num.String(), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrInvalidFormat, text, err)
		}
		num.Reset()

		unit, ok := units[c]
		if !ok {
			return 0, fmt.Errorf("%w: unknown duration unit %q", ErrInvalidFormat, c)
		}
		seg, err := segment(text, v, unit)
		if err != nil {
			return 0, err
		}
		total += seg
		if total > maxDuration {
			return 0, fmt.Errorf("%w: %q is too long", ErrInvalidFormat, text)
		}
	}

	if num.Len() > 0 && total == 0 {
		v, err := strconv.ParseFloat(num.String(), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrInvalidFormat, text, err)
		}
		if total, err = segment(text, v, time.Hour); err != nil {
			return 0, err
		}
	}

	if total <= 0 {
		return 0, fmt.Errorf("%w: %q is not a positive duration", ErrInvalidFormat, text)
	}
	return total, nil
}

// FormatFull renders an amount with thousands separators, e.g. "$1,234,567".
func FormatFull(amount int64) string {
	return "$" + humanize.Comma(amount)
}

// FormatCompact renders an amount short enough for a sign line: "$2M",
// "$15k", "$1.5k" or "$950".
func FormatCompact(amount int64) string {
	switch {
	case amount >= 1_000_000:
		m := math.RoundToEven(float64(amount) / 1e6)
		return "$" + humanize.Comma(int64(m)) + "M"
	case amount >= 1_000:
		if amount%1000 == 0 {
			return fmt.Sprintf("$%dk", amount/1000)
		}
		return fmt.Sprintf("$%.1fk", float64(amount)/1e3)
	default:
		return FormatFull(amount)
	}
}

// FormatRemaining renders time left on an auction as "2d 4h", "3h 15m",
// "12m", "40s", or "Ended" once nothing remains.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "Ended"
	}
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours%24)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
