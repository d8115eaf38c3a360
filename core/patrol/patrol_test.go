package patrol_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/neighborguard/core"
	"github.com/trezcool/neighborguard/core/patrol"
	"github.com/trezcool/neighborguard/core/user"
	"github.com/trezcool/neighborguard/storage/database/inmem"
	"github.com/trezcool/neighborguard/tests"
)

var now = time.Date(2024, 1, 17, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T) (user.Repository, patrol.Service) {
	db, err := inmemdb.Open()
	require.NoError(t, err)
	users := inmemdb.NewUserRepository(db)
	return users, patrol.NewService(inmemdb.NewScanRepository(db), users, core.FixedClock(now))
}

func fieldOf(t *testing.T, err error) string {
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want a validation error", err)
	}
	require.NotEmpty(t, verr.Fields)
	return verr.Fields[0].Field
}

func TestService_RecordScan(t *testing.T) {
	ctx := context.Background()
	users, svc := setup(t)
	ofc := testutil.CreateOfficer(t, users, "Thabo", "thabo", "", "h1")
	suspended := testutil.CreateOfficer(t, users, "Sipho", "sipho", "")
	suspended.Status = user.StatusSuspended
	_, err := users.UpdateOfficer(ctx, suspended)
	require.NoError(t, err)

	online, err := svc.RecordScan(ctx, patrol.NewScan{OfficerID: ofc.ID, HouseID: "h1", Timestamp: now})
	require.NoError(t, err)
	assert.NotEmpty(t, online.ID)
	assert.Equal(t, patrol.StatusCompleted, online.Status)

	offline, err := svc.RecordScan(ctx, patrol.NewScan{OfficerID: ofc.ID, HouseID: "h1", Timestamp: now.Add(-time.Hour), Offline: true})
	require.NoError(t, err)
	assert.Equal(t, patrol.StatusPendingSync, offline.Status)

	// clock skew tolerance
	_, err = svc.RecordScan(ctx, patrol.NewScan{OfficerID: ofc.ID, HouseID: "h1", Timestamp: now.Add(patrol.MaxClockSkew)})
	assert.NoError(t, err)

	tests := []struct {
		name      string
		ns        patrol.NewScan
		wantField string
	}{
		{"missing timestamp", patrol.NewScan{OfficerID: ofc.ID, HouseID: "h1"}, "timestamp"},
		{"future timestamp", patrol.NewScan{OfficerID: ofc.ID, HouseID: "h1", Timestamp: now.Add(time.Hour)}, "timestamp"},
		{"missing house", patrol.NewScan{OfficerID: ofc.ID, Timestamp: now}, "house_id"},
		{"unknown officer", patrol.NewScan{OfficerID: "missing", HouseID: "h1", Timestamp: now}, "officer_id"},
		{"suspended officer", patrol.NewScan{OfficerID: suspended.ID, HouseID: "h1", Timestamp: now}, "officer_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordScan(ctx, tt.ns)
			assert.Equal(t, tt.wantField, fieldOf(t, err))
		})
	}

	scans, err := svc.QueryScans(ctx, patrol.ScanFilter{OfficerIDs: []string{ofc.ID}})
	require.NoError(t, err)
	require.Len(t, scans, 3)
	assert.Equal(t, offline.ID, scans[0].ID) // oldest first

	pending, err := svc.QueryScans(ctx, patrol.ScanFilter{Statuses: []patrol.SyncStatus{patrol.StatusPendingSync}})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestService_SyncScans(t *testing.T) {
	ctx := context.Background()
	users, svc := setup(t)
	ofc := testutil.CreateOfficer(t, users, "Thabo", "thabo", "", "h1", "h2")

	res, err := svc.SyncScans(ctx, ofc.ID, []patrol.NewScan{
		{HouseID: "h1", Timestamp: now.Add(-3 * time.Hour)},
		{HouseID: "h2", Timestamp: now.Add(24 * time.Hour)},
		{HouseID: "", Timestamp: now.Add(-2 * time.Hour)},
		{OfficerID: "someone-else", HouseID: "h2", Timestamp: now.Add(-time.Hour)},
	})
	require.NoError(t, err)
	require.Len(t, res.Synced, 2)
	for _, s := range res.Synced {
		assert.Equal(t, ofc.ID, s.OfficerID)
		assert.Equal(t, patrol.StatusCompleted, s.Status)
	}
	require.Len(t, res.Failed, 2)
	assert.Equal(t, 1, res.Failed[0].Index)
	assert.Equal(t, 2, res.Failed[1].Index)
	assert.NotEmpty(t, res.Failed[0].Error)

	empty, err := svc.SyncScans(ctx, ofc.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Synced)
	assert.NotNil(t, empty.Failed)
}

func TestService_SetSyncStatus(t *testing.T) {
	ctx := context.Background()
	users, svc := setup(t)
	ofc := testutil.CreateOfficer(t, users, "Thabo", "thabo", "")

	scan, err := svc.RecordScan(ctx, patrol.NewScan{OfficerID: ofc.ID, HouseID: "h1", Timestamp: now, Offline: true})
	require.NoError(t, err)

	got, err := svc.SetSyncStatus(ctx, scan.ID, patrol.StatusFailed)
	require.NoError(t, err)
	assert.Equal(t, patrol.StatusFailed, got.Status)

	_, err = svc.SetSyncStatus(ctx, scan.ID, "lost")
	assert.Equal(t, "status", fieldOf(t, err))

	_, err = svc.SetSyncStatus(ctx, "missing", patrol.StatusCompleted)
	assert.Equal(t, patrol.ErrNotFound, err)
}

func TestService_ScansByOfficerAndDailySummary(t *testing.T) {
	ctx := context.Background()
	users, svc := setup(t)
	thabo := testutil.CreateOfficer(t, users, "Thabo", "thabo", "")
	sipho := testutil.CreateOfficer(t, users, "Sipho", "sipho", "")
	idle := testutil.CreateOfficer(t, users, "Idle", "idle", "")
	day := core.StartOfDay(now)

	record := func(officerID, houseID string, at time.Time) {
		_, err := svc.RecordScan(ctx, patrol.NewScan{OfficerID: officerID, HouseID: houseID, Timestamp: at})
		require.NoError(t, err)
	}
	record(thabo.ID, "h1", day.Add(time.Hour))
	record(thabo.ID, "h2", day.Add(2*time.Hour))
	record(sipho.ID, "h1", day.Add(3*time.Hour))
	record(sipho.ID, "h3", day.Add(-time.Hour)) // yesterday

	byOfficer, err := svc.ScansByOfficer(ctx, []string{thabo.ID, sipho.ID, idle.ID}, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, byOfficer[thabo.ID], 2)
	assert.Len(t, byOfficer[sipho.ID], 1)
	assert.NotNil(t, byOfficer[idle.ID])
	assert.Empty(t, byOfficer[idle.ID])

	summary, err := svc.DailySummary(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, patrol.DailySummary{Date: day, TotalScans: 3, UniqueHouses: 2, ActiveOfficers: 2}, summary)
}

func TestScanFilter_Match(t *testing.T) {
	s := patrol.Scan{OfficerID: "o1", HouseID: "h1", Timestamp: now, Status: patrol.StatusCompleted}
	tests := []struct {
		name   string
		filter patrol.ScanFilter
		want   bool
	}{
		{"empty", patrol.ScanFilter{}, true},
		{"officer", patrol.ScanFilter{OfficerIDs: []string{"o2", "o1"}}, true},
		{"other officer", patrol.ScanFilter{OfficerIDs: []string{"o2"}}, false},
		{"house", patrol.ScanFilter{HouseID: "h2"}, false},
		{"status", patrol.ScanFilter{Statuses: []patrol.SyncStatus{patrol.StatusPendingSync}}, false},
		{"from is inclusive", patrol.ScanFilter{From: now}, true},
		{"to is exclusive", patrol.ScanFilter{To: now}, false},
		{"window", patrol.ScanFilter{From: now.Add(-time.Minute), To: now.Add(time.Minute)}, true},
	}
	for _, tt := range tests {
		if got := tt.filter.Match(s); got != tt.want {
			t.Errorf("Match(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
