package quota

import (
	"testing"
	"time"

	"github.com/artpar/coreplane/domain/project"
)

func testQuota(monthlyLimit, hardCap int64) Quota {
	return Quota{
		ProjectID:    "proj-1",
		Service:      project.ServiceDB,
		MonthlyLimit: monthlyLimit,
		HardCap:      hardCap,
		ResetAt:      time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestEvaluate_ZeroHardCapAlwaysAllows(t *testing.T) {
	q := testQuota(500, 0)

	for _, usage := range []int64{0, 499, 500, 1_000_000} {
		result := Evaluate(q, usage, 10_000, 0)
		if !result.Allowed {
			t.Errorf("usage=%d: hard_cap=0 must always allow", usage)
		}
		if !result.Unlimited {
			t.Errorf("usage=%d: expected Unlimited=true", usage)
		}
	}
}

func TestEvaluate_ZeroHardCapStillComputesPercentage(t *testing.T) {
	q := testQuota(500, 0)

	result := Evaluate(q, 950, 50, 0)
	if !result.Allowed {
		t.Fatal("expected allowed")
	}
	if result.UsagePercentage != 200.0 {
		t.Errorf("UsagePercentage = %f, want 200.0", result.UsagePercentage)
	}
}

func TestEvaluate_HardCapBoundary(t *testing.T) {
	q := testQuota(0, 1000)

	cases := []struct {
		usage, amount int64
		allowed       bool
	}{
		{0, 1000, true},    // exactly at cap
		{999, 1, true},     // exactly at cap
		{950, 100, false},  // scenario from breach audit trail: 950+100 > 1000
		{1000, 0, true},    // at cap, zero increment
		{1000, 1, false},   // one over
		{0, 1001, false},
	}

	for _, tc := range cases {
		result := Evaluate(q, tc.usage, tc.amount, 0)
		if result.Allowed != tc.allowed {
			t.Errorf("Evaluate(usage=%d, amount=%d): Allowed=%v, want %v",
				tc.usage, tc.amount, result.Allowed, tc.allowed)
		}
		if !tc.allowed && result.Reason != ReasonHardCapExceeded {
			t.Errorf("denied result missing reason, got %q", result.Reason)
		}
	}
}

func TestEvaluate_SoftLimitNeverDenies(t *testing.T) {
	q := testQuota(500, 1000)

	result := Evaluate(q, 600, 100, 0)
	if !result.Allowed {
		t.Error("over monthly_limit but under hard_cap must be allowed")
	}
	if result.UsagePercentage != 140.0 {
		t.Errorf("UsagePercentage = %f, want 140.0", result.UsagePercentage)
	}
}

func TestEvaluate_ApproachingHardCapWarning(t *testing.T) {
	q := testQuota(0, 1000)

	result := Evaluate(q, 850, 50, 0)
	if result.Reason == ReasonApproachingHardCap {
		t.Error("90%% threshold not reached, warning unexpected")
	}

	result = Evaluate(q, 850, 51, 0)
	if !result.Allowed {
		t.Fatal("expected allowed")
	}
	if result.Reason != ReasonApproachingHardCap {
		t.Errorf("expected approaching_hard_cap advisory, got %q", result.Reason)
	}
}

func TestEvaluate_CustomWarnThreshold(t *testing.T) {
	q := testQuota(0, 1000)

	result := Evaluate(q, 500, 0, 50)
	if result.Reason != ReasonApproachingHardCap {
		t.Errorf("expected advisory at 50%% threshold, got %q", result.Reason)
	}
}

func TestPeriodStart(t *testing.T) {
	resetAt := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	want := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if got := PeriodStart(resetAt); !got.Equal(want) {
		t.Errorf("PeriodStart = %v, want %v", got, want)
	}
}

func TestNextReset_CatchesUp(t *testing.T) {
	resetAt := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)

	got := NextReset(resetAt, now)
	want := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("NextReset = %v, want %v", got, want)
	}
	if !got.After(now) {
		t.Error("NextReset must be in the future")
	}
}
