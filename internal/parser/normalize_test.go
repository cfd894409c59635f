package parser

import "testing"

func TestNormalizeNumericPlain(t *testing.T) {
	v, clean, err := normalizeNumeric("4.32")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 4.32 || clean != "4.32" {
		t.Fatalf("got %v %q", v, clean)
	}
}

func TestNormalizeNumericCurrencyTokens(t *testing.T) {
	cases := map[string]float64{
		"$9,123.50":  9123.5,
		"€1 234,":    1234, // embedded space and trailing separator
		"2655.4 USD": 2655.4,
		"8,900元/吨":   8900,
	}
	for in, want := range cases {
		v, _, err := normalizeNumeric(in)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", in, err)
		}
		if v != want {
			t.Fatalf("%q = %v, want %v", in, v, want)
		}
	}
}

func TestNormalizeNumericTokensContainingE(t *testing.T) {
	// Tokens with an embedded e (EUR, Euro, "per tonne") must not leave
	// stray exponent characters behind.
	cases := map[string]float64{
		"4.32 EUR":          4.32,
		"1 234 Euro":        1234,
		"120 USD per tonne": 120,
	}
	for in, want := range cases {
		v, _, err := normalizeNumeric(in)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", in, err)
		}
		if v != want {
			t.Fatalf("%q = %v, want %v", in, v, want)
		}
	}
}

func TestNormalizeNumericExponentPreserved(t *testing.T) {
	v, _, err := normalizeNumeric("1.5e6")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 1.5e6 {
		t.Fatalf("exponent mangled: %v", v)
	}
}

func TestNormalizeNumericMinorUnit(t *testing.T) {
	// Pence-quoted equities and cent-quoted commodities rescale to the
	// major unit.
	v, _, err := normalizeNumeric("432¢")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 4.32 {
		t.Fatalf("cents not rescaled: %v", v)
	}

	v, _, err = normalizeNumeric("1250 GBX")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 12.5 {
		t.Fatalf("pence not rescaled: %v", v)
	}

	v, _, err = normalizeNumeric("87 pence")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0.87 {
		t.Fatalf("pence not rescaled: %v", v)
	}
}

func TestNormalizeNumericGarbage(t *testing.T) {
	for _, in := range []string{"", "n/a", "--", "price"} {
		if _, _, err := normalizeNumeric(in); err == nil {
			t.Fatalf("%q: expected error", in)
		}
	}
}
