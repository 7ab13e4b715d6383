package gate

import "testing"

func TestEvaluateBlacklistDominates(t *testing.T) {
	ec := EvalContext{
		Cedula:        "1-111",
		Category:      CategoryContractor,
		Blacklist:     &BlacklistMatch{Severity: "high", Reason: "prior incident"},
		OpenAdmission: true,
		Authorization: AuthExpired,
		PendingAlert:  "badge not returned",
		Override:      true,
	}
	v := Evaluate(ec)
	if v.Status != VerdictDenied || v.Reason != ReasonBlacklisted {
		t.Fatalf("blacklist must dominate every other input, got %s/%s", v.Status, v.Reason)
	}
}

func TestEvaluateAlreadyInside(t *testing.T) {
	v := Evaluate(EvalContext{Cedula: "1-111", OpenAdmission: true, Authorization: AuthActive})
	if v.Status != VerdictDenied || v.Reason != ReasonAlreadyInside {
		t.Fatalf("got %s/%s", v.Status, v.Reason)
	}
}

func TestEvaluateDocumentDenials(t *testing.T) {
	for _, status := range []AuthorizationStatus{AuthExpired, AuthInactive, AuthSuspended} {
		v := Evaluate(EvalContext{Cedula: "1-111", Authorization: status})
		if v.Status != VerdictDenied || v.Reason != ReasonExpiredDocuments {
			t.Fatalf("status %s: got %s/%s", status, v.Status, v.Reason)
		}
		if v.Message == "" {
			t.Fatalf("status %s: denial must carry a message", status)
		}
	}
}

func TestEvaluateUndeterminedPasses(t *testing.T) {
	v := Evaluate(EvalContext{Cedula: "1-111", Authorization: AuthUndetermined})
	if v.Status != VerdictAllowed {
		t.Fatalf("undetermined authorization must pass, got %s/%s", v.Status, v.Reason)
	}
}

func TestEvaluatePendingAlertWarns(t *testing.T) {
	v := Evaluate(EvalContext{Cedula: "1-111", Authorization: AuthActive, PendingAlert: "badge 7 never returned"})
	if v.Status != VerdictWarning || v.Reason != ReasonBadgeAlert {
		t.Fatalf("got %s/%s", v.Status, v.Reason)
	}
	if !v.Allowed() {
		t.Fatal("a warning verdict still allows entry")
	}
}

func TestEvaluateAllowed(t *testing.T) {
	v := Evaluate(EvalContext{Cedula: "1-111", Authorization: AuthActive})
	if v.Status != VerdictAllowed || v.Reason != ReasonNone {
		t.Fatalf("got %s/%s", v.Status, v.Reason)
	}
}

func TestEvaluateOverrideScope(t *testing.T) {
	v := Evaluate(EvalContext{Cedula: "1-111", Authorization: AuthExpired, Override: true})
	if v.Status != VerdictAllowed {
		t.Fatalf("override should pass a documentation denial, got %s/%s", v.Status, v.Reason)
	}

	v = Evaluate(EvalContext{Cedula: "1-111", Blacklist: &BlacklistMatch{Reason: "x"}, Override: true})
	if v.Reason != ReasonBlacklisted {
		t.Fatalf("override must never bypass the blacklist, got %s/%s", v.Status, v.Reason)
	}

	v = Evaluate(EvalContext{Cedula: "1-111", OpenAdmission: true, Override: true})
	if v.Reason != ReasonAlreadyInside {
		t.Fatalf("override must never bypass an open admission, got %s/%s", v.Status, v.Reason)
	}
}
