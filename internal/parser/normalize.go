package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// minorUnitTokens mark quotes denominated in a currency's minor unit
// (cents, pence). Their presence rescales the value to the major unit.
// Weight/mass conversions (ounce/gram, pound/tonne) are deliberately NOT
// handled here: the stored unit stays exactly as the source asserted it,
// and display-time conversion is a presentation concern.
var minorUnitTokens = []string{"USc", "GBX", "GBp", "ZAc", "pence", "¢", "￠"}

// normalizeNumeric strips embedded currency/unit tokens from a numeric
// string, rescales minor-unit quotes to the major unit, and rejects
// non-finite results.
func normalizeNumeric(s string) (float64, string, error) {
	minor := false
	for _, tok := range minorUnitTokens {
		if strings.Contains(s, tok) {
			minor = true
			s = strings.ReplaceAll(s, tok, "")
		}
	}

	// Drop everything that cannot be part of a number: currency symbols,
	// unit suffixes, thousands separators. An e/E survives only in exponent
	// position (digit before, digit or signed digit after), so tokens like
	// EUR or Euro cannot leak letters into the cleaned string.
	rs := []rune(s)
	var b strings.Builder
	for i, r := range rs {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == '+':
			b.WriteRune(r)
		case r == 'e' || r == 'E':
			if isExponentAt(rs, i) {
				b.WriteRune(r)
			}
		}
	}
	clean := b.String()
	if clean == "" {
		return 0, "", fmt.Errorf("no numeric content in %q", s)
	}

	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse %q: %w", clean, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, "", fmt.Errorf("non-finite value %q", clean)
	}

	if minor {
		v /= 100
	}
	return v, strconv.FormatFloat(v, 'f', -1, 64), nil
}

func isExponentAt(rs []rune, i int) bool {
	if i == 0 || rs[i-1] < '0' || rs[i-1] > '9' {
		return false
	}
	j := i + 1
	if j < len(rs) && (rs[j] == '+' || rs[j] == '-') {
		j++
	}
	return j < len(rs) && rs[j] >= '0' && rs[j] <= '9'
}
