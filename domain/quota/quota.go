// Package quota provides pure functions for quota evaluation.
// All functions are deterministic with no side effects.
package quota

import (
	"time"

	"github.com/artpar/coreplane/domain/project"
)

// Quota represents configured limits for one (project, service) pair
// (value type).
type Quota struct {
	ProjectID    string
	Service      project.Service
	MonthlyLimit int64     // soft, informational; 0 = no soft limit
	HardCap      int64     // enforcement boundary; 0 = unlimited
	ResetAt      time.Time // next periodic reset instant
}

// Unlimited reports whether the hard cap is disabled for this quota.
func (q Quota) Unlimited() bool {
	return q.HardCap == 0
}

// DefaultWarnThresholdPct is the hard-cap percentage above which an
// advisory warning is raised.
const DefaultWarnThresholdPct = 90.0

// Reasons carried in evaluation results.
const (
	ReasonHardCapExceeded    = "hard_cap_exceeded"
	ReasonApproachingHardCap = "approaching_hard_cap"
)

// Result represents the outcome of a quota evaluation (value type).
type Result struct {
	Allowed         bool
	Unlimited       bool
	CurrentUsage    int64
	ProjectedUsage  int64
	MonthlyLimit    int64
	HardCap         int64
	UsagePercentage float64 // against MonthlyLimit; 0 when no soft limit set
	ResetAt         time.Time
	Reason          string // denial reason or advisory warning
}

// Evaluate checks a requested increment against a quota.
// This is a PURE function.
//
// Rules:
//   - HardCap == 0 means no enforcement and is checked before any comparison.
//   - Only the hard cap denies; exceeding MonthlyLimit alone never does.
//   - warnThresholdPct (percent of hard cap) raises an advisory reason on
//     allowed results; pass 0 to use DefaultWarnThresholdPct.
func Evaluate(q Quota, currentUsage, amount int64, warnThresholdPct float64) Result {
	if warnThresholdPct <= 0 {
		warnThresholdPct = DefaultWarnThresholdPct
	}

	projected := currentUsage + amount

	result := Result{
		CurrentUsage:   currentUsage,
		ProjectedUsage: projected,
		MonthlyLimit:   q.MonthlyLimit,
		HardCap:        q.HardCap,
		ResetAt:        q.ResetAt,
	}
	if q.MonthlyLimit > 0 {
		result.UsagePercentage = float64(projected) / float64(q.MonthlyLimit) * 100
	}

	// No enforcement when the hard cap is unset.
	if q.Unlimited() {
		result.Allowed = true
		result.Unlimited = true
		return result
	}

	if projected > q.HardCap {
		result.Allowed = false
		result.Reason = ReasonHardCapExceeded
		return result
	}

	result.Allowed = true
	if float64(projected)/float64(q.HardCap)*100 >= warnThresholdPct {
		result.Reason = ReasonApproachingHardCap
	}
	return result
}

// PeriodStart returns the start of the quota period that ends at resetAt.
// Periods are monthly: the active period is [resetAt - 1 month, resetAt).
func PeriodStart(resetAt time.Time) time.Time {
	return resetAt.AddDate(0, -1, 0)
}

// NextReset advances resetAt past now by whole periods. Normally a single
// AddDate, but catches up if the reset job was down for multiple periods.
func NextReset(resetAt, now time.Time) time.Time {
	next := resetAt
	for !next.After(now) {
		next = next.AddDate(0, 1, 0)
	}
	return next
}
