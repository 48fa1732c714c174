package sizing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestUSEquivalentFromEU(t *testing.T) {
	cases := []struct {
		std    Standard
		value  string
		gender Gender
		wantUS string
	}{
		{StandardEU, "42", GenderMen, "9"},
		{StandardEU, "38.5", GenderWomen, "8"},
		{StandardUK, "8.5", GenderMen, "9"},
		{StandardUS, "10.3", GenderMen, "10.5"},
		{StandardEU, "37", GenderYouth, "4.5"},
	}

	for _, tc := range cases {
		got, err := usEquivalent(tc.std, decimal.RequireFromString(tc.value), tc.gender)
		if err != nil {
			t.Fatalf("usEquivalent(%s %s %s): %v", tc.std, tc.value, tc.gender, err)
		}
		if !got.Equal(decimal.RequireFromString(tc.wantUS)) {
			t.Fatalf("usEquivalent(%s %s %s) = %s, want %s", tc.std, tc.value, tc.gender, got, tc.wantUS)
		}
	}
}

func TestUSEquivalentUnknownStandard(t *testing.T) {
	if _, err := usEquivalent(Standard("AU"), decimal.NewFromInt(9), GenderMen); err == nil {
		t.Fatal("expected error for unknown standard")
	}
}

// Converting a size out to any derived standard and back lands within half
// a step of where it started. CM is a coarse approximation, so exact
// round-trips are not guaranteed there.
func TestRoundTripWithinHalfStep(t *testing.T) {
	half := decimal.RequireFromString("0.5")

	for _, size := range DefaultSizes() {
		for _, std := range []Standard{StandardEU, StandardUK, StandardCM, StandardJP, StandardKR} {
			value, ok := size.Value(std)
			if !ok {
				t.Fatalf("size US %s (%s) missing %s value", size.US, size.Gender, std)
			}
			back, err := usEquivalent(std, value, size.Gender)
			if err != nil {
				t.Fatalf("usEquivalent(%s %s %s): %v", std, value, size.Gender, err)
			}
			if back.Sub(size.US).Abs().GreaterThan(half) {
				t.Fatalf("US %s (%s) via %s %s came back as %s", size.US, size.Gender, std, value, back)
			}
		}
	}
}

func TestFromUSMenExample(t *testing.T) {
	eu, uk, cm, jp, kr, err := fromUS(decimal.NewFromInt(9), GenderMen)
	if err != nil {
		t.Fatalf("fromUS: %v", err)
	}

	if !eu.Equal(decimal.NewFromInt(42)) {
		t.Fatalf("EU = %s, want 42", eu)
	}
	if !uk.Equal(decimal.RequireFromString("8.5")) {
		t.Fatalf("UK = %s, want 8.5", uk)
	}
	if !cm.Equal(decimal.RequireFromString("26.5")) {
		t.Fatalf("CM = %s, want 26.5", cm)
	}
	if !jp.Equal(cm) {
		t.Fatalf("JP = %s, want %s", jp, cm)
	}
	if !kr.Equal(decimal.NewFromInt(265)) {
		t.Fatalf("KR = %s, want 265", kr)
	}
}
