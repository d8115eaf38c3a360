package patrol

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/neighborguard/core"
	"github.com/trezcool/neighborguard/core/user"
)

var (
	// errors
	ErrNotFound          = errors.New("scan not found")
	ErrInvalidTimestamp  = errors.New("scan timestamp is missing or in the future")
	ErrOfficerNotFound   = errors.New("officer not found")
	ErrOfficerNotActive  = errors.New("officer account is not active")
	ErrInvalidSyncStatus = errors.New("invalid sync status")
)

type (
	Repository interface {
		CreateScan(ctx context.Context, scan Scan) (Scan, error)
		GetScan(ctx context.Context, id string) (Scan, error)
		// QueryScans returns the scans matching filter, oldest first.
		QueryScans(ctx context.Context, filter ScanFilter) ([]Scan, error)
		UpdateScanStatus(ctx context.Context, id string, status SyncStatus) (Scan, error)
	}

	// OfficerGetter finds officers; satisfied by user.Repository.
	OfficerGetter interface {
		GetOfficer(ctx context.Context, id string) (user.Officer, error)
	}

	Service interface {
		RecordScan(ctx context.Context, ns NewScan) (Scan, error)
		SyncScans(ctx context.Context, officerID string, scans []NewScan) (SyncResult, error)
		SetSyncStatus(ctx context.Context, id string, status SyncStatus) (Scan, error)
		QueryScans(ctx context.Context, filter ScanFilter) ([]Scan, error)
		ScansByOfficer(ctx context.Context, officerIDs []string, from, to time.Time) (map[string][]Scan, error)
		DailySummary(ctx context.Context, day time.Time) (DailySummary, error)
	}

	service struct {
		repo     Repository
		officers OfficerGetter
		clock    core.Clock
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, officers OfficerGetter, clock core.Clock) Service {
	if clock == nil {
		clock = core.SystemClock
	}
	return &service{repo: repo, officers: officers, clock: clock}
}

func (svc *service) check(ctx context.Context, ns NewScan) error {
	now := svc.clock.Now()
	if ns.Timestamp.IsZero() || ns.Timestamp.After(now.Add(MaxClockSkew)) {
		return core.NewFieldError("timestamp", ErrInvalidTimestamp)
	}
	if ns.HouseID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "house_id", Error: "this field is required"})
	}

	ofc, err := svc.officers.GetOfficer(ctx, ns.OfficerID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewFieldError("officer_id", ErrOfficerNotFound)
		}
		return errors.Wrap(err, "getting officer")
	}
	if !ofc.IsActive() {
		return core.NewFieldError("officer_id", ErrOfficerNotActive)
	}
	return nil
}

// RecordScan stores a scan; offline scans wait in pending_sync until acknowledged.
func (svc *service) RecordScan(ctx context.Context, ns NewScan) (Scan, error) {
	if err := svc.check(ctx, ns); err != nil {
		return Scan{}, err
	}
	status := StatusCompleted
	if ns.Offline {
		status = StatusPendingSync
	}
	scan, err := svc.repo.CreateScan(ctx, Scan{
		OfficerID: ns.OfficerID,
		HouseID:   ns.HouseID,
		Timestamp: ns.Timestamp.UTC(),
		Status:    status,
	})
	return scan, errors.Wrap(err, "creating scan")
}

// SyncScans replays a batch of scans queued offline by one officer.
// Invalid scans are reported and skipped; the others are stored as completed.
func (svc *service) SyncScans(ctx context.Context, officerID string, scans []NewScan) (SyncResult, error) {
	res := SyncResult{Synced: []Scan{}, Failed: []SyncFailure{}}
	for i, ns := range scans {
		ns.OfficerID = officerID
		if err := svc.check(ctx, ns); err != nil {
			var vErr *core.ValidationError
			if !errors.As(err, &vErr) {
				return res, err
			}
			res.Failed = append(res.Failed, SyncFailure{Index: i, Error: vErr.Error()})
			continue
		}
		scan, err := svc.repo.CreateScan(ctx, Scan{
			OfficerID: ns.OfficerID,
			HouseID:   ns.HouseID,
			Timestamp: ns.Timestamp.UTC(),
			Status:    StatusCompleted,
		})
		if err != nil {
			return res, errors.Wrap(err, "creating scan")
		}
		res.Synced = append(res.Synced, scan)
	}
	return res, nil
}

func (svc *service) SetSyncStatus(ctx context.Context, id string, status SyncStatus) (Scan, error) {
	if !status.IsValid() {
		return Scan{}, core.NewFieldError("status", ErrInvalidSyncStatus)
	}
	return svc.repo.UpdateScanStatus(ctx, id, status)
}

func (svc *service) QueryScans(ctx context.Context, filter ScanFilter) ([]Scan, error) {
	return svc.repo.QueryScans(ctx, filter)
}

// ScansByOfficer groups the scans in [from, to) per officer. Every requested officer has an entry.
func (svc *service) ScansByOfficer(ctx context.Context, officerIDs []string, from, to time.Time) (map[string][]Scan, error) {
	scans, err := svc.repo.QueryScans(ctx, ScanFilter{OfficerIDs: officerIDs, From: from, To: to})
	if err != nil {
		return nil, errors.Wrap(err, "querying scans")
	}
	byOfficer := make(map[string][]Scan, len(officerIDs))
	for _, id := range officerIDs {
		byOfficer[id] = []Scan{}
	}
	for _, s := range scans {
		byOfficer[s.OfficerID] = append(byOfficer[s.OfficerID], s)
	}
	return byOfficer, nil
}

func (svc *service) DailySummary(ctx context.Context, day time.Time) (DailySummary, error) {
	from := core.StartOfDay(day)
	scans, err := svc.repo.QueryScans(ctx, ScanFilter{From: from, To: from.AddDate(0, 0, 1)})
	if err != nil {
		return DailySummary{}, errors.Wrap(err, "querying scans")
	}
	houses := make(map[string]struct{})
	officers := make(map[string]struct{})
	for _, s := range scans {
		houses[s.HouseID] = struct{}{}
		officers[s.OfficerID] = struct{}{}
	}
	return DailySummary{
		Date:           from,
		TotalScans:     len(scans),
		UniqueHouses:   len(houses),
		ActiveOfficers: len(officers),
	}, nil
}

// SortByTimestamp sorts scans oldest first, then by ID.
func SortByTimestamp(scans []Scan) {
	sort.Slice(scans, func(i, j int) bool {
		if scans[i].Timestamp.Equal(scans[j].Timestamp) {
			return scans[i].ID < scans[j].ID
		}
		return scans[i].Timestamp.Before(scans[j].Timestamp)
	})
}
