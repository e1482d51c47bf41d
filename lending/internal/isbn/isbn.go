// Package isbn holds the lending rules derived from a book identifier alone.
// The identifier is the catalog key and need not be a checksum-valid ISBN.
package isbn

import (
	"strings"
	"unicode"
)

// DigitSumThreshold is the digit sum an identifier must exceed to get a due date.
const DigitSumThreshold = 30

func Valid(id string) bool {
	return len(id) > 0
}

// IsPalindrome compares the whole identifier, punctuation included, against its
// rune reversal ignoring case.
func IsPalindrome(id string) bool {
	return strings.EqualFold(id, reverse(id))
}

// DigitSum adds up every decimal digit of the identifier in any script
// (Arabic-Indic, Devanagari, fullwidth...). Only the Basic Multilingual Plane
// is considered; supplementary-plane digits contribute 0.
func DigitSum(id string) int {
	sum := 0
	for _, r := range id {
		if d, ok := digitValue(r); ok {
			sum += d
		}
	}
	return sum
}

// digitValue relies on Nd ranges being consecutive runs of ten starting at zero.
func digitValue(r rune) (int, bool) {
	if r > 0xFFFF || !unicode.IsDigit(r) {
		return 0, false
	}
	for _, rng := range unicode.Digit.R16 {
		if c := uint16(r); c >= rng.Lo && c <= rng.Hi {
			return int(c-rng.Lo) % 10, true
		}
	}
	return 0, false
}

func DigitSumAboveThreshold(id string) bool {
	return DigitSum(id) > DigitSumThreshold
}

func reverse(s string) string {
	rs := []rune(s)
	for i, j := 0, len(rs)-1; i < j; i, j = i+1, j-1 {
		rs[i], rs[j] = rs[j], rs[i]
	}
	return string(rs)
}
