package gate

import (
	"testing"
	"time"
)

func TestParseAuthorizationStatus(t *testing.T) {
	cases := map[string]AuthorizationStatus{
		"active":     AuthActive,
		" ACTIVO ":   AuthActive,
		"vigente":    AuthActive,
		"expired":    AuthExpired,
		"vencido":    AuthExpired,
		"inactive":   AuthInactive,
		"suspended":  AuthSuspended,
		"suspendido": AuthSuspended,
		"":           AuthUndetermined,
		"garbage":    AuthUndetermined,
		"ACTIVE-ISH": AuthUndetermined,
	}
	for raw, want := range cases {
		if got := ParseAuthorizationStatus(raw); got != want {
			t.Fatalf("ParseAuthorizationStatus(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestComputeAuthorizationExpiryOverride(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	tomorrow := now.AddDate(0, 0, 1)

	if got := ComputeAuthorization("active", &yesterday, now); got != AuthExpired {
		t.Fatalf("lapsed expiry must override stored status, got %s", got)
	}
	if got := ComputeAuthorization("active", &tomorrow, now); got != AuthActive {
		t.Fatalf("future expiry should keep stored status, got %s", got)
	}
	if got := ComputeAuthorization("active", &now, now); got != AuthActive {
		t.Fatalf("expiry today is still valid, got %s", got)
	}
	if got := ComputeAuthorization("garbage", nil, now); got != AuthUndetermined {
		t.Fatalf("no expiry and unknown status should be undetermined, got %s", got)
	}
}

func TestParseAccessCategory(t *testing.T) {
	if got, ok := ParseAccessCategory("Contratista"); !ok || got != CategoryContractor {
		t.Fatalf("got %q ok=%v", got, ok)
	}
	if _, ok := ParseAccessCategory("driver"); ok {
		t.Fatal("unknown category should not parse")
	}
}
