package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/neighborguard/core"
	"github.com/trezcool/neighborguard/core/notification"
	"github.com/trezcool/neighborguard/core/patrol"
	"github.com/trezcool/neighborguard/core/user"
	"github.com/trezcool/neighborguard/storage/database/inmem"
	"github.com/trezcool/neighborguard/tests"
)

const adminEmail = "admin@neighborguard.test"

type testEnv struct {
	engine *Engine
	users  user.Repository
	scans  patrol.Repository
	outbox *testutil.Outbox
	admin  user.User
}

func setup(t *testing.T, opts ...func(*Options)) *testEnv {
	db, err := inmemdb.Open()
	require.NoError(t, err)

	env := &testEnv{
		users:  inmemdb.NewUserRepository(db),
		scans:  inmemdb.NewScanRepository(db),
		outbox: testutil.NewOutbox(),
	}
	env.admin = testutil.CreateAdmin(t, env.users, "Admin", "admin", "")

	o := Options{
		Users:      env.users,
		Scans:      env.scans,
		Sender:     env.outbox,
		Clock:      core.FixedClock(now),
		Logger:     testutil.Logger(t),
		AdminEmail: "fallback@neighborguard.test",
		Registerer: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	env.engine = NewEngine(o)
	return env
}

func (env *testEnv) scan(t *testing.T, officerID, houseID string, at time.Time) {
	env.scanWithStatus(t, officerID, houseID, at, patrol.StatusCompleted)
}

func (env *testEnv) scanWithStatus(t *testing.T, officerID, houseID string, at time.Time, status patrol.SyncStatus) {
	_, err := env.scans.CreateScan(context.Background(), patrol.Scan{
		OfficerID: officerID,
		HouseID:   houseID,
		Timestamp: at,
		Status:    status,
	})
	require.NoError(t, err)
}

func TestEngine_EvaluateOfficer(t *testing.T) {
	ctx := context.Background()

	t.Run("suspension", func(t *testing.T) {
		env := setup(t)
		ofc := testutil.CreateOfficer(t, env.users, "Thabo", "thabo", "", "h1", "h2", "h3", "h4")

		res := env.engine.EvaluateOfficer(ctx, &ofc, scansOf("h1", "h2"))
		assert.Equal(t, Result{ComplianceRate: 50, Compliant: false, Action: ActionSuspended}, res)
		assert.Equal(t, user.StatusSuspended, ofc.Status)
		assert.Equal(t, 50, ofc.ComplianceRate)
		require.NotNil(t, ofc.SuspensionEndDate)
		assert.Equal(t, now.Add(7*24*time.Hour), *ofc.SuspensionEndDate)

		assert.Len(t, env.outbox.EmailsTo(ofc.Email), 1)
		assert.Len(t, env.outbox.SMSsTo(ofc.Phone), 1)
		alerts := env.outbox.EmailsTo(env.admin.Email)
		require.Len(t, alerts, 1)
		assert.Contains(t, alerts[0].Body, "(Badge: B-thabo)")

		// the admin alert follows the officer's own notifications
		seq := env.outbox.Sequence()
		require.Len(t, seq, 3)
		assert.Equal(t, "email:"+env.admin.Email, seq[2])
	})

	t.Run("warning", func(t *testing.T) {
		env := setup(t)
		ofc := testutil.CreateOfficer(t, env.users, "Thabo", "thabo", "", "h1", "h2", "h3", "h4")

		res := env.engine.EvaluateOfficer(ctx, &ofc, scansOf("h1", "h2", "h3"))
		assert.Equal(t, Result{ComplianceRate: 75, Compliant: true, Action: ActionWarning}, res)
		assert.Equal(t, user.StatusActive, ofc.Status)
		assert.Nil(t, ofc.SuspensionEndDate)
		assert.Len(t, env.outbox.EmailsTo(ofc.Email), 1)
		assert.Len(t, env.outbox.SMSsTo(ofc.Phone), 1)
		assert.Empty(t, env.outbox.EmailsTo(env.admin.Email))
	})

	t.Run("compliant", func(t *testing.T) {
		env := setup(t)
		ofc := testutil.CreateOfficer(t, env.users, "Thabo", "thabo", "")

		res := env.engine.EvaluateOfficer(ctx, &ofc, nil)
		assert.Equal(t, Result{ComplianceRate: 100, Compliant: true, Action: ActionNone}, res)
		assert.Empty(t, env.outbox.Sequence())
	})

	t.Run("notification failure keeps the suspension", func(t *testing.T) {
		env := setup(t)
		ofc := testutil.CreateOfficer(t, env.users, "Thabo", "thabo", "", "h1", "h2")
		env.outbox.FailTo[ofc.Email] = true

		res := env.engine.EvaluateOfficer(ctx, &ofc, nil)
		assert.Equal(t, ActionSuspended, res.Action)
		assert.Equal(t, user.StatusSuspended, ofc.Status)
		assert.Len(t, env.outbox.SMSsTo(ofc.Phone), 1)
		assert.Len(t, env.outbox.EmailsTo(env.admin.Email), 1)
		assert.Equal(t, float64(1), promtestutil.ToFloat64(env.engine.metrics.failedMessages))
	})

	t.Run("fallback admin address", func(t *testing.T) {
		env := setup(t)
		_, err := env.users.UpdateUser(ctx, func() user.User { u := env.admin; u.Status = user.StatusInactive; return u }())
		require.NoError(t, err)
		ofc := testutil.CreateOfficer(t, env.users, "Thabo", "thabo", "", "h1")

		env.engine.EvaluateOfficer(ctx, &ofc, nil)
		assert.Len(t, env.outbox.EmailsTo("fallback@neighborguard.test"), 1)
		assert.Empty(t, env.outbox.EmailsTo(env.admin.Email))
	})
}

func TestEngine_CheckAndReinstateOfficers(t *testing.T) {
	env := setup(t)
	past, future := now.Add(-time.Minute), now.Add(24*time.Hour)

	due := testutil.CreateOfficer(t, env.users, "Due", "due", "")
	due.Status, due.SuspensionEndDate = user.StatusSuspended, &past
	running := testutil.CreateOfficer(t, env.users, "Running", "running", "")
	running.Status, running.SuspensionEndDate = user.StatusSuspended, &future
	active := testutil.CreateOfficer(t, env.users, "Active", "active", "")

	got := env.engine.CheckAndReinstateOfficers(context.Background(), []*user.Officer{&running, &due, &active})
	require.Equal(t, []*user.Officer{&due}, got)
	assert.Equal(t, user.StatusActive, due.Status)
	assert.Nil(t, due.SuspensionEndDate)
	assert.Equal(t, user.StatusSuspended, running.Status)
	assert.Equal(t, &future, running.SuspensionEndDate)

	emails := env.outbox.EmailsTo(due.Email)
	require.Len(t, emails, 1)
	assert.Equal(t, "Account Reactivated", emails[0].Subject)
	assert.Len(t, env.outbox.SMSsTo(due.Phone), 1)
	assert.Empty(t, env.outbox.EmailsTo(running.Email))
}

func TestGenerateComplianceReport(t *testing.T) {
	officers := []user.Officer{
		{User: user.User{ID: "o1", Username: "full", Status: user.StatusActive}, AssignedHouses: []string{"h1", "h2"}},
		{User: user.User{ID: "o2", Username: "half", Status: user.StatusActive}, AssignedHouses: []string{"h1", "h2"}},
		{User: user.User{ID: "o3", Username: "none", Status: user.StatusSuspended}},
	}
	byOfficer := map[string][]patrol.Scan{
		"o1": scansOf("h1", "h2"),
		"o2": scansOf("h2"),
	}

	got := GenerateComplianceReport(officers, byOfficer, 70)
	want := Report{
		TotalOfficers:         3,
		CompliantOfficers:     2,
		NonCompliantOfficers:  1,
		AverageComplianceRate: 83,
		OfficerDetails: []OfficerRow{
			{OfficerID: "o1", Name: "full", ComplianceRate: 100, Status: user.StatusActive},
			{OfficerID: "o2", Name: "half", ComplianceRate: 50, Status: user.StatusActive},
			{OfficerID: "o3", Name: "none", ComplianceRate: 100, Status: user.StatusSuspended},
		},
	}
	assert.Equal(t, want, got)

	empty := GenerateComplianceReport(nil, nil, 70)
	assert.Equal(t, 0, empty.AverageComplianceRate)
	assert.Equal(t, 0, empty.TotalOfficers)
	assert.NotNil(t, empty.OfficerDetails)
}

func TestEngine_CheckResidentPayment(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	reminded := testutil.CreateResident(t, env.users, "Late", "late", "", "h1", now.AddDate(0, 0, -30))
	got, err := env.engine.CheckResidentPayment(ctx, reminded)
	require.NoError(t, err)
	assert.Equal(t, PaymentResult{Compliant: true, DaysOverdue: 30, Reminded: true}, got)
	assert.Len(t, env.outbox.EmailsTo(reminded.Email), 1)
	assert.Len(t, env.outbox.SMSsTo(reminded.Phone), 1)

	overdue := testutil.CreateResident(t, env.users, "Gone", "gone", "", "h2", now.AddDate(0, 0, -61))
	got, err = env.engine.CheckResidentPayment(ctx, overdue)
	require.NoError(t, err)
	assert.Equal(t, PaymentResult{Compliant: false, DaysOverdue: 61}, got)
	assert.Empty(t, env.outbox.EmailsTo(overdue.Email))
	stored, err := env.users.GetResident(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, user.StatusActive, stored.Status)

	_, err = env.engine.CheckResidentPayment(ctx, user.Resident{})
	var verr *core.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestEngine_PaymentStatus(t *testing.T) {
	env := setup(t)

	res := testutil.CreateResident(t, env.users, "Late", "late", "", "h1", now.AddDate(0, 0, -30))
	got, err := env.engine.PaymentStatus(res)
	require.NoError(t, err)
	assert.Equal(t, PaymentResult{Compliant: true, DaysOverdue: 30}, got)
	assert.Empty(t, env.outbox.Sequence())

	_, err = env.engine.PaymentStatus(user.Resident{})
	assert.Error(t, err)
}

func TestEngine_PerformComplianceCheck(t *testing.T) {
	ctx := context.Background()
	env := setup(t)
	weekStart := core.StartOfWeek(now)
	lastWeek := weekStart.Add(-time.Hour)

	steady := testutil.CreateOfficer(t, env.users, "Steady", "steady", "", "h1")
	slack := testutil.CreateOfficer(t, env.users, "Slack", "slack", "", "h2")
	idle := testutil.CreateOfficer(t, env.users, "Idle", "idle", "", "h3")
	for i := 0; i < 20; i++ {
		env.scan(t, steady.ID, "h1", weekStart.Add(time.Duration(i)*time.Hour))
	}
	// 6 of the 20 weekly scans are due by Wednesday 10:00
	for i := 0; i < 5; i++ {
		env.scan(t, slack.ID, "h2", weekStart.Add(time.Duration(i)*time.Hour))
	}
	env.scan(t, idle.ID, "h3", weekStart.Add(time.Hour))
	env.scan(t, idle.ID, "h3", weekStart.Add(2*time.Hour))
	for i := 0; i < 30; i++ {
		env.scan(t, idle.ID, "h3", lastWeek) // not counted
	}

	paid := testutil.CreateResident(t, env.users, "Paid", "paid", "", "h1", now.AddDate(0, 1, 0))
	late := testutil.CreateResident(t, env.users, "Late", "late", "", "h2", now.AddDate(0, 0, -10))
	gone := testutil.CreateResident(t, env.users, "Gone", "gone", "", "h3", now.AddDate(0, 0, -70))

	summary, err := env.engine.PerformComplianceCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepSummary{
		StartedAt:          now,
		OfficersChecked:    3,
		OfficersWarned:     1,
		OfficersSuspended:  1,
		ResidentsChecked:   3,
		ResidentsReminded:  1,
		ResidentsSuspended: 1,
	}, summary)

	got, err := env.users.GetOfficer(ctx, steady.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.ScansThisWeek)
	assert.Equal(t, 100, got.ComplianceRate)
	assert.Equal(t, user.StatusActive, got.Status)

	got, err = env.users.GetOfficer(ctx, slack.ID)
	require.NoError(t, err)
	assert.Equal(t, 83, got.ComplianceRate)
	assert.Equal(t, user.StatusActive, got.Status)
	assert.Len(t, env.outbox.EmailsTo(slack.Email), 1)

	got, err = env.users.GetOfficer(ctx, idle.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ScansThisWeek)
	assert.Equal(t, 33, got.ComplianceRate)
	assert.Equal(t, user.StatusSuspended, got.Status)
	require.NotNil(t, got.SuspensionEndDate)
	assert.Equal(t, now.Add(7*24*time.Hour), *got.SuspensionEndDate)
	assert.Len(t, env.outbox.EmailsTo(env.admin.Email), 1)

	res, err := env.users.GetResident(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, user.PaymentActive, res.PaymentStatus)
	assert.Empty(t, env.outbox.EmailsTo(paid.Email))

	res, err = env.users.GetResident(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, user.StatusActive, res.Status)
	assert.Equal(t, user.PaymentOverdue, res.PaymentStatus)
	assert.Len(t, env.outbox.SMSsTo(late.Phone), 1)

	res, err = env.users.GetResident(ctx, gone.ID)
	require.NoError(t, err)
	assert.Equal(t, user.StatusSuspended, res.Status)
	assert.Equal(t, user.PaymentSuspended, res.PaymentStatus)
	emails := env.outbox.EmailsTo(gone.Email)
	require.Len(t, emails, 1)
	assert.Contains(t, emails[0].Body, "overdue by 70 days")

	assert.Equal(t, float64(1), promtestutil.ToFloat64(env.engine.metrics.sweeps.WithLabelValues("success")))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(env.engine.metrics.actions.WithLabelValues(string(ActionSuspended))))

	// suspended users are not swept again
	env.outbox.Reset()
	summary, err = env.engine.PerformComplianceCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.OfficersChecked)
	assert.Equal(t, 2, summary.ResidentsChecked)
	assert.Empty(t, env.outbox.EmailsTo(idle.Email))
}

func TestEngine_PerformComplianceCheck_EarlyInTheWeek(t *testing.T) {
	ctx := context.Background()
	weekStart := core.StartOfWeek(now)
	monday := weekStart.Add(9 * time.Hour)
	env := setup(t, func(o *Options) { o.Clock = core.FixedClock(monday) })

	diligent := testutil.CreateOfficer(t, env.users, "Diligent", "diligent", "", "h1")
	for i := 0; i < 25; i++ {
		env.scan(t, diligent.ID, "h1", weekStart.Add(-time.Duration(i+1)*time.Hour))
	}
	for i := 0; i < 3; i++ {
		env.scan(t, diligent.ID, "h1", weekStart.Add(time.Duration(6+i)*time.Hour))
	}

	summary, err := env.engine.PerformComplianceCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.OfficersChecked)
	assert.Zero(t, summary.OfficersSuspended)
	assert.Zero(t, summary.OfficersWarned)

	got, err := env.users.GetOfficer(ctx, diligent.ID)
	require.NoError(t, err)
	assert.Equal(t, user.StatusActive, got.Status)
	assert.Equal(t, 3, got.ScansThisWeek)
	assert.Equal(t, 100, got.ComplianceRate)
	assert.Nil(t, got.SuspensionEndDate)
	assert.Empty(t, env.outbox.EmailsTo(diligent.Email))

	// nothing is due at the very start of the week
	env = setup(t, func(o *Options) { o.Clock = core.FixedClock(weekStart) })
	fresh := testutil.CreateOfficer(t, env.users, "Fresh", "fresh", "", "h1")
	summary, err = env.engine.PerformComplianceCheck(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.OfficersSuspended)
	got, err = env.users.GetOfficer(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, user.StatusActive, got.Status)
}

func TestEngine_UnverifiedScansDoNotCount(t *testing.T) {
	ctx := context.Background()
	env := setup(t)
	ofc := testutil.CreateOfficer(t, env.users, "Thabo", "thabo", "", "h1", "h2", "h3", "h4")
	for _, h := range []string{"h1", "h2", "h3", "h4"} {
		env.scanWithStatus(t, ofc.ID, h, now.Add(-time.Hour), patrol.StatusFailed)
	}
	env.scanWithStatus(t, ofc.ID, "h1", now.Add(-time.Hour), patrol.StatusPendingSync)

	from := core.StartOfWeek(now)
	rep, err := env.engine.Report(ctx, from, from.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, rep.OfficerDetails, 1)
	assert.Equal(t, 0, rep.OfficerDetails[0].ComplianceRate)

	res, got, err := env.engine.EvaluateOfficerByID(ctx, ofc.ID)
	require.NoError(t, err)
	assert.Equal(t, Result{ComplianceRate: 0, Compliant: false, Action: ActionSuspended}, res)
	assert.Equal(t, user.StatusSuspended, got.Status)

	// the weekly sweep ignores them too
	env = setup(t)
	ofc = testutil.CreateOfficer(t, env.users, "Thabo", "thabo", "", "h1")
	for i := 0; i < 20; i++ {
		env.scanWithStatus(t, ofc.ID, "h1", now.Add(-time.Duration(i+1)*time.Minute), patrol.StatusFailed)
	}
	summary, err := env.engine.PerformComplianceCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.OfficersSuspended)
	stored, err := env.users.GetOfficer(ctx, ofc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.ScansThisWeek)
}

// recordingSender checks the stored officer status when notifications go out.
type recordingSender struct {
	notification.Sender
	users    user.Repository
	officer  string
	statuses []user.Status
}

func (s *recordingSender) SendSMS(ctx context.Context, to, message string) bool {
	if ofc, err := s.users.GetOfficer(ctx, s.officer); err == nil {
		s.statuses = append(s.statuses, ofc.Status)
	}
	return s.Sender.SendSMS(ctx, to, message)
}

func TestEngine_PerformComplianceCheck_PersistsBeforeDispatch(t *testing.T) {
	sender := &recordingSender{}
	env := setup(t, func(o *Options) { o.Sender = sender })
	sender.Sender, sender.users = env.outbox, env.users

	idle := testutil.CreateOfficer(t, env.users, "Idle", "idle", "", "h1")
	sender.officer = idle.ID

	_, err := env.engine.PerformComplianceCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []user.Status{user.StatusSuspended}, sender.statuses)
}

// failingUsers fails to save one officer.
type failingUsers struct {
	user.Repository
	failID string
}

func (r failingUsers) UpdateOfficer(ctx context.Context, ofc user.Officer) (user.Officer, error) {
	if ofc.ID == r.failID {
		return user.Officer{}, errors.New("connection reset")
	}
	return r.Repository.UpdateOfficer(ctx, ofc)
}

func TestEngine_PerformComplianceCheck_SkipsFailures(t *testing.T) {
	var users failingUsers
	env := setup(t, func(o *Options) { o.Users = &users })
	users.Repository = env.users

	broken := testutil.CreateOfficer(t, env.users, "Broken", "broken", "", "h1")
	idle := testutil.CreateOfficer(t, env.users, "Idle", "idle", "", "h2")
	users.failID = broken.ID

	summary, err := env.engine.PerformComplianceCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.OfficersChecked)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.OfficersSuspended)

	// nothing is sent for an officer that could not be saved
	assert.Empty(t, env.outbox.EmailsTo(broken.Email))
	assert.Len(t, env.outbox.EmailsTo(idle.Email), 1)
}

func TestEngine_EvaluateOfficerByID(t *testing.T) {
	ctx := context.Background()
	env := setup(t, func(o *Options) { o.SweepPolicy = HouseCoverage{} })
	ofc := testutil.CreateOfficer(t, env.users, "Thabo", "thabo", "", "h1", "h2")
	env.scan(t, ofc.ID, "h1", now.Add(-time.Hour))
	env.scan(t, ofc.ID, "h2", now.AddDate(0, 0, -1)) // yesterday

	res, got, err := env.engine.EvaluateOfficerByID(ctx, ofc.ID)
	require.NoError(t, err)
	assert.Equal(t, Result{ComplianceRate: 50, Compliant: false, Action: ActionSuspended}, res)
	assert.Equal(t, user.StatusSuspended, got.Status)

	stored, err := env.users.GetOfficer(ctx, ofc.ID)
	require.NoError(t, err)
	assert.Equal(t, user.StatusSuspended, stored.Status)
	assert.Equal(t, 50, stored.ComplianceRate)

	_, _, err = env.engine.EvaluateOfficerByID(ctx, "missing")
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))
}

func TestEngine_ReinstateExpired(t *testing.T) {
	ctx := context.Background()
	env := setup(t)
	past, future := now.Add(-time.Hour), now.Add(time.Hour)

	due := testutil.CreateOfficer(t, env.users, "Due", "due", "")
	due.Status, due.SuspensionEndDate = user.StatusSuspended, &past
	_, err := env.users.UpdateOfficer(ctx, due)
	require.NoError(t, err)

	running := testutil.CreateOfficer(t, env.users, "Running", "running", "")
	running.Status, running.SuspensionEndDate = user.StatusSuspended, &future
	_, err = env.users.UpdateOfficer(ctx, running)
	require.NoError(t, err)

	reinstated, err := env.engine.ReinstateExpired(ctx)
	require.NoError(t, err)
	require.Len(t, reinstated, 1)
	assert.Equal(t, due.ID, reinstated[0].ID)

	stored, err := env.users.GetOfficer(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, user.StatusActive, stored.Status)
	assert.Nil(t, stored.SuspensionEndDate)

	stored, err = env.users.GetOfficer(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, user.StatusSuspended, stored.Status)
}

func TestEngine_Reports(t *testing.T) {
	ctx := context.Background()
	env := setup(t)
	from := core.StartOfWeek(now)
	to := from.AddDate(0, 0, 7)

	low := testutil.CreateOfficer(t, env.users, "Low", "low", "", "h1", "h2", "h3", "h4")
	high := testutil.CreateOfficer(t, env.users, "High", "high", "", "h1", "h2")
	env.scan(t, low.ID, "h1", from.Add(time.Hour))
	env.scan(t, high.ID, "h1", from.Add(time.Hour))
	env.scan(t, high.ID, "h2", from.Add(3*time.Hour))
	env.scan(t, high.ID, "h2", from.Add(2*time.Hour))
	env.scan(t, low.ID, "h2", to) // out of range

	rep, err := env.engine.Report(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.TotalOfficers)
	assert.Equal(t, 1, rep.CompliantOfficers)
	assert.Equal(t, 63, rep.AverageComplianceRate)
	assert.Equal(t, from, rep.From)
	assert.Equal(t, now, rep.GeneratedAt)

	audit, err := env.engine.AuditReport(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, audit.Rows, 2)
	assert.Equal(t, high.ID, audit.Rows[0].OfficerID)
	assert.Equal(t, 100, audit.Rows[0].ComplianceRate)
	assert.Equal(t, 3, audit.Rows[0].TotalScans)
	assert.Equal(t, 2, audit.Rows[0].ScannedHouses)
	require.NotNil(t, audit.Rows[0].LastScanAt)
	assert.Equal(t, from.Add(3*time.Hour), *audit.Rows[0].LastScanAt)
	assert.Equal(t, 25, audit.Rows[1].ComplianceRate)
	assert.Equal(t, 4, audit.Rows[1].AssignedHouses)
	assert.Equal(t, 1, audit.CompliantOfficers)
	assert.Equal(t, 1, audit.NonCompliantOfficers)
	assert.Equal(t, 0, audit.SuspendedOfficers)
}

func TestEngine_ApplyPayment(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	res := testutil.CreateResident(t, env.users, "Gone", "gone", "", "h1", now.AddDate(0, 0, -70))
	res.Status, res.PaymentStatus = user.StatusSuspended, user.PaymentSuspended
	_, err := env.users.UpdateResident(ctx, res)
	require.NoError(t, err)

	got, err := env.engine.ApplyPayment(ctx, res.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 2, 0), got.SubscriptionEndDate)
	assert.Equal(t, user.StatusActive, got.Status)
	assert.Equal(t, user.PaymentActive, got.PaymentStatus)
	assert.Len(t, env.outbox.EmailsTo(res.Email), 2)
	assert.Len(t, env.outbox.SMSsTo(res.Phone), 2)

	_, err = env.engine.ApplyPayment(ctx, res.ID, 0)
	var verr *core.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = env.engine.ApplyPayment(ctx, "missing", 1)
	assert.Equal(t, user.ErrNotFound, err)
}
