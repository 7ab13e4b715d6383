package gate

type VerdictStatus string

const (
	VerdictAllowed VerdictStatus = "allowed"
	VerdictDenied  VerdictStatus = "denied"
	VerdictWarning VerdictStatus = "warning"
)

type DenyReason string

const (
	ReasonNone             DenyReason = ""
	ReasonBlacklisted      DenyReason = "blacklisted"
	ReasonAlreadyInside    DenyReason = "already_inside"
	ReasonExpiredDocuments DenyReason = "expired_documents"
	ReasonBadgeAlert       DenyReason = "badge_alert"
)

type Verdict struct {
	Status  VerdictStatus
	Reason  DenyReason
	Message string
}

func (v Verdict) Allowed() bool {
	return v.Status == VerdictAllowed || v.Status == VerdictWarning
}

type BlacklistMatch struct {
	Severity string
	Reason   string
}

// EvalContext aggregates everything the validation rules need for one
// candidate admission. Optional inputs are pointers; nil means absent.
type EvalContext struct {
	Cedula        string
	FullName      string
	Category      AccessCategory
	Blacklist     *BlacklistMatch
	OpenAdmission bool
	Authorization AuthorizationStatus
	PendingAlert  string

	// Override lets an explicitly elevated caller pass a subject whose
	// documentation lapsed. It never overrides the blacklist or an open
	// admission.
	Override bool
}

// Evaluate runs the admission rules in priority order; the first match wins.
// It never fails: missing inputs are valid "not present" answers.
func Evaluate(ec EvalContext) Verdict {
	if ec.Blacklist != nil {
		msg := "subject is blacklisted"
		if ec.Blacklist.Reason != "" {
			msg = "subject is blacklisted: " + ec.Blacklist.Reason
		}
		return Verdict{Status: VerdictDenied, Reason: ReasonBlacklisted, Message: msg}
	}
	if ec.OpenAdmission {
		return Verdict{Status: VerdictDenied, Reason: ReasonAlreadyInside, Message: "subject already has an open admission"}
	}
	if !ec.Override {
		switch ec.Authorization {
		case AuthExpired:
			return Verdict{Status: VerdictDenied, Reason: ReasonExpiredDocuments, Message: "documentation expired"}
		case AuthInactive:
			return Verdict{Status: VerdictDenied, Reason: ReasonExpiredDocuments, Message: "subject is inactive"}
		case AuthSuspended:
			return Verdict{Status: VerdictDenied, Reason: ReasonExpiredDocuments, Message: "subject is suspended"}
		}
	}
	if ec.PendingAlert != "" {
		return Verdict{Status: VerdictWarning, Reason: ReasonBadgeAlert, Message: "pending badge alert: " + ec.PendingAlert}
	}
	return Verdict{Status: VerdictAllowed, Reason: ReasonNone}
}
