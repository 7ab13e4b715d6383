package gate

import "errors"

// Policy denials are data (a Verdict), never errors. These cover everything
// else: missing records, resource conflicts, and malformed input. Storage
// failures pass through unwrapped.
var (
	ErrSubjectNotFound   = errors.New("subject profile not found")
	ErrAdmissionNotFound = errors.New("no active admission for subject")
	ErrBadgeNotFound     = errors.New("badge not found")
	ErrAlertNotFound     = errors.New("alert not found")

	ErrBadgeUnavailable     = errors.New("badge is not available")
	ErrSubjectInside        = errors.New("subject already has an open admission")
	ErrAdmissionClosed      = errors.New("admission already closed")
	ErrAlertAlreadyResolved = errors.New("alert already resolved")

	ErrExitBeforeEntry = errors.New("exit timestamp precedes entry timestamp")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotValidated    = errors.New("entry was not allowed by validation")
)

// Conflict reports whether an error is a resource conflict, as opposed to a
// missing record or bad input. Conflicts are not transient and must not be
// retried blindly.
func Conflict(err error) bool {
	return errors.Is(err, ErrBadgeUnavailable) ||
		errors.Is(err, ErrSubjectInside) ||
		errors.Is(err, ErrAdmissionClosed) ||
		errors.Is(err, ErrAlertAlreadyResolved)
}

// NotFound reports whether an error names a missing record.
func NotFound(err error) bool {
	return errors.Is(err, ErrSubjectNotFound) ||
		errors.Is(err, ErrAdmissionNotFound) ||
		errors.Is(err, ErrBadgeNotFound) ||
		errors.Is(err, ErrAlertNotFound)
}

// Invalid reports whether an error is a caller input problem.
func Invalid(err error) bool {
	return errors.Is(err, ErrExitBeforeEntry) || errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrNotValidated)
}
