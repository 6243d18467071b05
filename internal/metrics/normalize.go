// Package metrics implements the metric reconciliation engine: pure
// normalizers that map free-text metric inputs into canonical forms suitable
// for strongly-typed CRM properties, and the conflict policy that decides
// which value wins when local and CRM-sourced values both exist.
package metrics

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Canonical runway buckets. These are the only values the CRM runway
// property accepts; anything else is passed through so the CRM surfaces its
// own validation error instead of the app silently coercing.
const (
	RunwayUnder3 = "<3 months"
	Runway3To6   = "3 - 6 months"
	Runway6To12  = "6 - 12 months"
	RunwayOver12 = ">12 months"
)

var runwayBuckets = []string{RunwayUnder3, Runway3To6, Runway6To12, RunwayOver12}

var (
	under3Pattern  = regexp.MustCompile(`(?i)(<\s*3|less than 3|under 3|fewer than 3)`)
	over12Pattern  = regexp.MustCompile(`(?i)(>\s*12|more than 12|over 12|12\+)`)
	range3To6      = regexp.MustCompile(`^\s*3\s*(-|–|to)\s*6\b`)
	range6To12     = regexp.MustCompile(`^\s*6\s*(-|–|to)\s*12\b`)
	firstNumber    = regexp.MustCompile(`\d+(\.\d+)?`)
	rangeOrCompare = regexp.MustCompile(`[<>–]|-|\bto\b`)
)

// BucketRunway maps a free-text runway description into one of the four
// canonical buckets. Already-canonical input returns unchanged. Phrase
// patterns are tried first, then a numeric-threshold fallback on the first
// number found; input with no recognizable signal passes through as-is.
func BucketRunway(input string) string {
	s := strings.TrimSpace(input)
	if s == "" {
		return s
	}

	for _, bucket := range runwayBuckets {
		if strings.EqualFold(s, bucket) {
			return bucket
		}
	}

	switch {
	case under3Pattern.MatchString(s):
		return RunwayUnder3
	case over12Pattern.MatchString(s):
		return RunwayOver12
	case range3To6.MatchString(s):
		return Runway3To6
	case range6To12.MatchString(s):
		return Runway6To12
	}

	if m := firstNumber.FindString(s); m != "" {
		n, err := strconv.ParseFloat(m, 64)
		if err == nil {
			switch {
			case n < 3:
				return RunwayUnder3
			case n <= 6:
				return Runway3To6
			case n <= 12:
				return Runway6To12
			default:
				return RunwayOver12
			}
		}
	}

	return input
}

// DealRunway normalizes runway for a CRM property that expects a single
// number of months. Inputs carrying range or comparison punctuation pass
// through unchanged; otherwise the first numeric token is rounded.
func DealRunway(input string) string {
	s := strings.TrimSpace(input)
	if s == "" {
		return s
	}

	if rangeOrCompare.MatchString(s) {
		return input
	}

	if m := firstNumber.FindString(s); m != "" {
		if n, err := strconv.ParseFloat(m, 64); err == nil {
			return strconv.Itoa(int(math.Round(n)))
		}
	}

	return input
}

// ToMillions parses a money string (optional $, thousands separators, k/m/b
// suffix) and renders the amount in millions, rounded to 2 decimals, as an
// integer string when exact.
//
// Bare numbers with no suffix are ambiguous: values over 100,000 are assumed
// to be raw dollars, smaller values already-in-millions. The threshold is a
// guess at analyst intent; do not adjust it without real input data.
func ToMillions(input string) string {
	amount, ok := parseMoney(input)
	if !ok {
		return input
	}

	return formatAmount(amount.millions())
}

// ToDollars parses the same money grammar but resolves to absolute dollars,
// used for company-level CRM properties expecting raw integers.
func ToDollars(input string) string {
	amount, ok := parseMoney(input)
	if !ok {
		return input
	}

	return strconv.FormatInt(int64(math.Round(amount.dollars())), 10)
}

// bareThreshold splits ambiguous suffix-less numbers: above it the value is
// treated as raw dollars, at or below as already-in-millions.
const bareThreshold = 100_000

type money struct {
	value  float64
	suffix byte // 'k', 'm', 'b', or 0 for bare
}

func (m money) dollars() float64 {
	switch m.suffix {
	case 'k':
		return m.value * 1_000
	case 'm':
		return m.value * 1_000_000
	case 'b':
		return m.value * 1_000_000_000
	default:
		if m.value > bareThreshold {
			return m.value
		}
		return m.value * 1_000_000
	}
}

func (m money) millions() float64 {
	return m.dollars() / 1_000_000
}

var moneyPattern = regexp.MustCompile(`(?i)^\s*\$?\s*([\d,]+(?:\.\d+)?)\s*([kmb])?\s*(?:illion)?\s*$`)

func parseMoney(input string) (money, bool) {
	matches := moneyPattern.FindStringSubmatch(input)
	if matches == nil {
		return money{}, false
	}

	raw := strings.ReplaceAll(matches[1], ",", "")
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return money{}, false
	}

	var suffix byte
	if matches[2] != "" {
		suffix = strings.ToLower(matches[2])[0]
	}

	return money{value: value, suffix: suffix}, true
}

func formatAmount(v float64) string {
	rounded := math.Round(v*100) / 100
	if rounded == math.Trunc(rounded) {
		return strconv.FormatInt(int64(rounded), 10)
	}
	return strings.TrimRight(fmt.Sprintf("%.2f", rounded), "0")
}
