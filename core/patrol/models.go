package patrol

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/neighborguard/core"
)

// MaxClockSkew is how far in the future a scan timestamp may be.
const MaxClockSkew = 5 * time.Minute

type SyncStatus string

const (
	StatusPendingSync SyncStatus = "pending_sync"
	StatusCompleted   SyncStatus = "completed"
	StatusFailed      SyncStatus = "failed"
)

var AllStatuses = []SyncStatus{StatusPendingSync, StatusCompleted, StatusFailed}

func (s SyncStatus) IsValid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Scan is a QR checkpoint scan of a house by an officer.
type Scan struct {
	ID        string     `json:"id"`
	OfficerID string     `json:"officer_id"`
	HouseID   string     `json:"house_id"`
	Timestamp time.Time  `json:"timestamp"` // UTC
	Status    SyncStatus `json:"status"`
}

// NewScan is a scan submitted by an officer. Offline scans were recorded while disconnected.
type NewScan struct {
	OfficerID string    `json:"officer_id" validate:"required"`
	HouseID   string    `json:"house_id" validate:"required"`
	Timestamp time.Time `json:"timestamp" validate:"required"`
	Offline   bool      `json:"offline"`
}

func (ns *NewScan) Validate(validate *validator.Validate) error {
	ns.OfficerID = core.CleanString(ns.OfficerID)
	ns.HouseID = core.CleanString(ns.HouseID)
	return validate.Struct(ns)
}

type ScanFilter struct {
	OfficerIDs []string     `query:"officer_id"`
	HouseID    string       `query:"house_id"`
	Statuses   []SyncStatus `query:"status"`
	From       time.Time    `query:"from"` // inclusive
	To         time.Time    `query:"to"`   // exclusive
}

// Match reports whether `s` satisfies every set field of the filter.
func (f ScanFilter) Match(s Scan) bool {
	if len(f.OfficerIDs) > 0 && !containsString(f.OfficerIDs, s.OfficerID) {
		return false
	}
	if f.HouseID != "" && s.HouseID != f.HouseID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if st == s.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && s.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !s.Timestamp.Before(f.To) {
		return false
	}
	return true
}

// SyncResult reports a batch of replayed offline scans.
type SyncResult struct {
	Synced []Scan        `json:"synced"`
	Failed []SyncFailure `json:"failed"`
}

type SyncFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// DailySummary aggregates the scans of one UTC day.
type DailySummary struct {
	Date           time.Time `json:"date"`
	TotalScans     int       `json:"total_scans"`
	UniqueHouses   int       `json:"unique_houses"`
	ActiveOfficers int       `json:"active_officers"`
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
