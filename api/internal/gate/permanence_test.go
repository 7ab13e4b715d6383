package gate

import (
	"testing"
	"time"
)

func TestClassifyPermanenceBoundaries(t *testing.T) {
	th := DefaultPermanenceThresholds()

	cases := []struct {
		minutes int
		want    PermanenceState
	}{
		{0, PermanenceNormal},
		{809, PermanenceNormal},
		{810, PermanenceEarlyAlert},
		{839, PermanenceEarlyAlert},
		{840, PermanenceExceeded},
		{900, PermanenceExceeded},
	}
	for _, tc := range cases {
		got := th.ClassifyPermanence(time.Duration(tc.minutes) * time.Minute)
		if got.State != tc.want {
			t.Fatalf("elapsed %d min: got %s, want %s", tc.minutes, got.State, tc.want)
		}
	}
}

func TestClassifyPermanenceMessages(t *testing.T) {
	th := DefaultPermanenceThresholds()

	normal := th.ClassifyPermanence(100 * time.Minute)
	if normal.Message != "" {
		t.Fatalf("normal state should carry no message, got %q", normal.Message)
	}

	early := th.ClassifyPermanence(820 * time.Minute)
	if early.RemainingMinutes != 20 {
		t.Fatalf("remaining minutes = %d, want 20", early.RemainingMinutes)
	}
	if early.Message == "" {
		t.Fatal("early alert should carry a message")
	}

	exceeded := th.ClassifyPermanence(850 * time.Minute)
	if exceeded.RemainingMinutes != -10 {
		t.Fatalf("remaining minutes = %d, want -10", exceeded.RemainingMinutes)
	}
	if exceeded.Message == "" {
		t.Fatal("exceeded state should carry a message")
	}
}

func TestClassifySince(t *testing.T) {
	th := PermanenceThresholds{EarlyWarnMinutes: 30, HardMaxMinutes: 60}
	entered := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	got := th.ClassifySince(entered, entered.Add(45*time.Minute))
	if got.State != PermanenceEarlyAlert {
		t.Fatalf("state = %s, want %s", got.State, PermanenceEarlyAlert)
	}
	if got.ElapsedMinutes != 45 {
		t.Fatalf("elapsed = %d, want 45", got.ElapsedMinutes)
	}
}
