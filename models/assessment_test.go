package models

import (
	"testing"
	"time"
)

func TestAttemptStatus(t *testing.T) {
	now := time.Now()

	open := Attempt{StartedAt: now}
	if open.Status() != AttemptInProgress {
		t.Errorf("open attempt status = %q, want %q", open.Status(), AttemptInProgress)
	}

	done := Attempt{StartedAt: now, CompletedAt: &now}
	if done.Status() != AttemptCompleted {
		t.Errorf("completed attempt status = %q, want %q", done.Status(), AttemptCompleted)
	}
}

func TestAttemptPercentage(t *testing.T) {
	tests := []struct {
		name  string
		score int
		total int
		want  float64
	}{
		{"no points in quiz", 0, 0, 0},
		{"quarter", 1, 4, 25},
		{"full marks", 4, 4, 100},
		{"zero score", 0, 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Attempt{Score: tt.score, TotalPoints: tt.total}
			if got := a.Percentage(); got != tt.want {
				t.Errorf("Percentage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAttemptPassed(t *testing.T) {
	if (&Attempt{Score: 69, TotalPoints: 100}).Passed() {
		t.Error("69/100 must not pass")
	}
	if !(&Attempt{Score: 70, TotalPoints: 100}).Passed() {
		t.Error("70/100 must pass, the threshold is inclusive")
	}
	if (&Attempt{Score: 0, TotalPoints: 0}).Passed() {
		t.Error("an attempt on a zero-point quiz must not pass")
	}
}
