package ingest

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultCurrency is assumed for bare "$" amounts.
const DefaultCurrency = "AUD"

var amountRegex = regexp.MustCompile(`(\d[\d,\.]*\d|\d)\s*(thousand|million|mil|k|m)?\b`)

// ParseAmount pulls a funding range out of free text such as "$50,000",
// "up to AUD 1.5m" or "$10,000 - $25,000". A single figure is read as the
// maximum unless the wording marks it as a minimum. Zero means not stated.
func ParseAmount(text string) (lo, hi float64, currency string) {
	lower := strings.ToLower(text)

	var amounts []float64
	for _, m := range amountRegex.FindAllStringSubmatch(lower, -1) {
		v, ok := parseGroupedNumber(m[1])
		if !ok || v <= 0 {
			continue
		}
		switch m[2] {
		case "k", "thousand":
			v *= 1e3
		case "m", "mil", "million":
			v *= 1e6
		}
		amounts = append(amounts, v)
	}
	if len(amounts) == 0 {
		return 0, 0, ""
	}
	currency = detectCurrency(lower)

	if len(amounts) == 1 {
		if strings.Contains(lower, "minimum") || strings.Contains(lower, "at least") || strings.Contains(lower, "from ") {
			return amounts[0], 0, currency
		}
		return 0, amounts[0], currency
	}

	lo, hi = amounts[0], amounts[0]
	for _, a := range amounts[1:] {
		if a < lo {
			lo = a
		}
		if a > hi {
			hi = a
		}
	}
	if lo == hi {
		return 0, hi, currency
	}
	return lo, hi, currency
}

// parseGroupedNumber accepts 1,000,000 / 1000000 / 1,000.50 and the
// European 1.000.000 grouping.
func parseGroupedNumber(s string) (float64, bool) {
	if v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
		return v, true
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

func detectCurrency(lower string) string {
	switch {
	case strings.Contains(lower, "usd") || strings.Contains(lower, "us$"):
		return "USD"
	case strings.Contains(lower, "nzd") || strings.Contains(lower, "nz$"):
		return "NZD"
	case strings.Contains(lower, "£") || strings.Contains(lower, "gbp"):
		return "GBP"
	case strings.Contains(lower, "€") || strings.Contains(lower, "eur"):
		return "EUR"
	}
	return DefaultCurrency
}
