package gate

import (
	"fmt"
	"time"
)

type PermanenceState string

const (
	PermanenceNormal     PermanenceState = "normal"
	PermanenceEarlyAlert PermanenceState = "early_alert"
	PermanenceExceeded   PermanenceState = "exceeded"
)

type PermanenceThresholds struct {
	EarlyWarnMinutes int
	HardMaxMinutes   int
}

func DefaultPermanenceThresholds() PermanenceThresholds {
	return PermanenceThresholds{EarlyWarnMinutes: 810, HardMaxMinutes: 840}
}

type PermanenceReport struct {
	State            PermanenceState
	ElapsedMinutes   int
	RemainingMinutes int
	Message          string
}

// ClassifyPermanence buckets an elapsed stay against the thresholds. Both
// boundaries are inclusive: elapsed == early warn is already EarlyAlert,
// elapsed == hard max is already Exceeded. Normal stays carry no message.
func (t PermanenceThresholds) ClassifyPermanence(elapsed time.Duration) PermanenceReport {
	minutes := int(elapsed.Minutes())
	remaining := t.HardMaxMinutes - minutes
	report := PermanenceReport{
		State:            PermanenceNormal,
		ElapsedMinutes:   minutes,
		RemainingMinutes: remaining,
	}
	switch {
	case minutes >= t.HardMaxMinutes:
		report.State = PermanenceExceeded
		report.Message = fmt.Sprintf("permanence exceeded by %d minutes", -remaining)
	case minutes >= t.EarlyWarnMinutes:
		report.State = PermanenceEarlyAlert
		report.Message = fmt.Sprintf("%d minutes remaining", remaining)
	}
	return report
}

// ClassifySince is the time-based convenience over ClassifyPermanence.
func (t PermanenceThresholds) ClassifySince(enteredAt time.Time, now time.Time) PermanenceReport {
	return t.ClassifyPermanence(now.Sub(enteredAt))
}
