package gate

import "testing"

func TestNormalizeBadgeCode(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"7", "7"},
		{" 7 ", "7"},
		{"007", "7"},
		{"a12", "A12"},
		{"0", BadgeSentinel},
		{"00", BadgeSentinel},
		{"", BadgeSentinel},
		{"   ", BadgeSentinel},
		{"S/G", BadgeSentinel},
	}
	for _, tc := range cases {
		if got := NormalizeBadgeCode(tc.in); got != tc.want {
			t.Fatalf("NormalizeBadgeCode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeBadgeCodeIdempotent(t *testing.T) {
	inputs := []string{"7", "007", " 42", "0", "", "s/g", "B003"}
	for _, in := range inputs {
		once := NormalizeBadgeCode(in)
		twice := NormalizeBadgeCode(once)
		if once != twice {
			t.Fatalf("normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestHasBadge(t *testing.T) {
	if HasBadge("0") {
		t.Fatal("sentinel code should not count as a badge")
	}
	if !HasBadge("12") {
		t.Fatal("numeric code should count as a badge")
	}
}

func TestBadgeCategoryFor(t *testing.T) {
	if got := BadgeCategoryFor(CategoryContractor); got != "contractor" {
		t.Fatalf("contractor pool = %q", got)
	}
	if got := BadgeCategoryFor(CategoryManual); got != "visitor" {
		t.Fatalf("manual admissions should use the visitor pool, got %q", got)
	}
}
