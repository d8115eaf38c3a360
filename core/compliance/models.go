package compliance

import (
	"time"

	"github.com/trezcool/neighborguard/core"
	"github.com/trezcool/neighborguard/core/user"
)

type Action string

const (
	ActionNone      Action = "none"
	ActionWarning   Action = "warning"
	ActionSuspended Action = "suspended"
)

// Result is the outcome of an officer evaluation.
type Result struct {
	ComplianceRate int    `json:"compliance_rate"`
	Compliant      bool   `json:"compliant"`
	Action         Action `json:"action"`
}

// PaymentResult is the outcome of a resident payment check. DaysOverdue is 0 when up to date.
type PaymentResult struct {
	Compliant   bool `json:"compliant"`
	DaysOverdue int  `json:"days_overdue"`
	Reminded    bool `json:"reminded"`
}

// Thresholds drive the compliance ladder.
type Thresholds struct {
	MinRate            int // below: suspension
	WarningRate        int // below: warning
	SuspensionPeriod   time.Duration
	PaymentGraceDays   int
	DefaultTargetScans int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinRate:            70,
		WarningRate:        85,
		SuspensionPeriod:   7 * 24 * time.Hour,
		PaymentGraceDays:   60,
		DefaultTargetScans: user.DefaultTargetScans,
	}
}

// ThresholdsFromConfig overrides the defaults with the set config values.
func ThresholdsFromConfig(conf core.ComplianceConfig) Thresholds {
	th := DefaultThresholds()
	if conf.MinComplianceRate > 0 {
		th.MinRate = conf.MinComplianceRate
	}
	if conf.WarningComplianceRate > 0 {
		th.WarningRate = conf.WarningComplianceRate
	}
	if conf.SuspensionPeriod > 0 {
		th.SuspensionPeriod = conf.SuspensionPeriod
	}
	if conf.PaymentGraceDays > 0 {
		th.PaymentGraceDays = conf.PaymentGraceDays
	}
	if conf.DefaultTargetScans > 0 {
		th.DefaultTargetScans = conf.DefaultTargetScans
	}
	return th
}

type OfficerRow struct {
	OfficerID      string      `json:"officer_id"`
	Name           string      `json:"name"`
	ComplianceRate int         `json:"compliance_rate"`
	Status         user.Status `json:"status"`
}

// Report aggregates officer compliance over a set of scans.
type Report struct {
	TotalOfficers         int          `json:"total_officers"`
	CompliantOfficers     int          `json:"compliant_officers"`
	NonCompliantOfficers  int          `json:"non_compliant_officers"`
	AverageComplianceRate int          `json:"average_compliance_rate"`
	OfficerDetails        []OfficerRow `json:"officer_details"`
	From                  time.Time    `json:"from,omitempty"`
	To                    time.Time    `json:"to,omitempty"`
	GeneratedAt           time.Time    `json:"generated_at,omitempty"`
}

type AuditRow struct {
	OfficerID      string      `json:"officer_id"`
	Name           string      `json:"name"`
	BadgeNumber    string      `json:"badge_number"`
	AssignedHouses int         `json:"assigned_houses"`
	ScannedHouses  int         `json:"scanned_houses"`
	TotalScans     int         `json:"total_scans"`
	ComplianceRate int         `json:"compliance_rate"`
	Status         user.Status `json:"status"`
	LastScanAt     *time.Time  `json:"last_scan_at"`
}

// AuditReport lists officers by compliance rate, highest first.
type AuditReport struct {
	From                 time.Time  `json:"from"`
	To                   time.Time  `json:"to"`
	GeneratedAt          time.Time  `json:"generated_at"`
	CompliantOfficers    int        `json:"compliant_officers"`
	NonCompliantOfficers int        `json:"non_compliant_officers"`
	SuspendedOfficers    int        `json:"suspended_officers"`
	Rows                 []AuditRow `json:"rows"`
}

// SweepSummary reports a compliance sweep.
type SweepSummary struct {
	StartedAt          time.Time `json:"started_at"`
	OfficersChecked    int       `json:"officers_checked"`
	OfficersWarned     int       `json:"officers_warned"`
	OfficersSuspended  int       `json:"officers_suspended"`
	ResidentsChecked   int       `json:"residents_checked"`
	ResidentsReminded  int       `json:"residents_reminded"`
	ResidentsSuspended int       `json:"residents_suspended"`
	Skipped            int       `json:"skipped"`
}
