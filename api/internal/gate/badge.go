package gate

import "strings"

// BadgeSentinel marks an admission with no physical badge ("sin gafete").
const BadgeSentinel = "S/G"

// NormalizeBadgeCode canonicalizes a reported badge code: trim, uppercase,
// strip leading zeros. An empty code or all-zeros code maps to the sentinel.
// The function is idempotent.
func NormalizeBadgeCode(raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" || code == BadgeSentinel {
		return BadgeSentinel
	}
	trimmed := strings.TrimLeft(code, "0")
	if trimmed == "" {
		return BadgeSentinel
	}
	return trimmed
}

// HasBadge reports whether a normalized code refers to a physical badge.
func HasBadge(code string) bool {
	return NormalizeBadgeCode(code) != BadgeSentinel
}

// BadgeCategoryFor selects the badge pool matching an access category.
// Manual admissions draw from the visitor pool.
func BadgeCategoryFor(category AccessCategory) string {
	switch category {
	case CategoryContractor:
		return "contractor"
	case CategorySupplier:
		return "supplier"
	default:
		return "visitor"
	}
}
