package compliance

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/neighborguard/core/patrol"
	"github.com/trezcool/neighborguard/core/user"
)

const (
	PolicyHouseCoverage = "house_coverage"
	PolicyTargetScans   = "target_scans"
)

const week = 7 * 24 * time.Hour

// Policy rates an officer's patrols in [0, 100].
// `elapsed` is how much of the scoring week has passed when the scans are rated.
type Policy interface {
	Name() string
	Rate(ofc user.Officer, scans []patrol.Scan, elapsed time.Duration) int
}

// HouseCoverage rates the share of assigned houses scanned at least once.
type HouseCoverage struct{}

func (HouseCoverage) Name() string { return PolicyHouseCoverage }

func (HouseCoverage) Rate(ofc user.Officer, scans []patrol.Scan, _ time.Duration) int {
	return CalculateComplianceRate(ofc.AssignedHouses, scans)
}

// TargetScans rates the scans performed against the share of the officer's weekly target
// due after `elapsed`. Officer.ScansThisWeek is used when `scans` is nil.
type TargetScans struct {
	DefaultTarget int
}

func (TargetScans) Name() string { return PolicyTargetScans }

func (p TargetScans) Rate(ofc user.Officer, scans []patrol.Scan, elapsed time.Duration) int {
	count := ofc.ScansThisWeek
	if scans != nil {
		count = len(scans)
	}
	due := ProratedTarget(ofc.Target(p.DefaultTarget), elapsed)
	if due == 0 {
		return 100
	}
	return TargetScansRate(count, due)
}

// ProratedTarget returns the whole number of scans of a weekly `target` due after `elapsed`.
// `elapsed` is clamped to [0, 1 week].
func ProratedTarget(target int, elapsed time.Duration) int {
	if target <= 0 {
		target = user.DefaultTargetScans
	}
	switch {
	case elapsed <= 0:
		return 0
	case elapsed >= week:
		return target
	}
	return int(int64(target) * int64(elapsed) / int64(week))
}

// PolicyByName returns the named policy.
func PolicyByName(name string, defaultTarget int) (Policy, error) {
	switch name {
	case PolicyHouseCoverage:
		return HouseCoverage{}, nil
	case PolicyTargetScans, "":
		return TargetScans{DefaultTarget: defaultTarget}, nil
	}
	return nil, errors.Errorf("unknown compliance policy %q", name)
}

// CalculateComplianceRate returns round(100 * distinct scanned assigned houses / assigned houses).
// No assigned houses is fully compliant.
func CalculateComplianceRate(assignedHouses []string, scans []patrol.Scan) int {
	assigned := make(map[string]struct{}, len(assignedHouses))
	for _, h := range assignedHouses {
		assigned[h] = struct{}{}
	}
	if len(assigned) == 0 {
		return 100
	}

	scanned := make(map[string]struct{}, len(assigned))
	for _, s := range scans {
		if _, ok := assigned[s.HouseID]; ok {
			scanned[s.HouseID] = struct{}{}
		}
	}
	return roundPercent(len(scanned), len(assigned))
}

// TargetScansRate returns round(100 * count / target), clamped to [0, 100].
func TargetScansRate(count, target int) int {
	if target <= 0 {
		target = user.DefaultTargetScans
	}
	if count <= 0 {
		return 0
	}
	return clamp(roundPercent(count, target))
}

func roundPercent(n, total int) int {
	return int(math.Round(float64(n) * 100 / float64(total)))
}

func clamp(rate int) int {
	if rate < 0 {
		return 0
	}
	if rate > 100 {
		return 100
	}
	return rate
}
