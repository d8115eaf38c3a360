package compliance

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/neighborguard/core"
	"github.com/trezcool/neighborguard/core/notification"
	"github.com/trezcool/neighborguard/core/patrol"
	"github.com/trezcool/neighborguard/core/user"
)

var (
	ErrNoSubscriptionEnd = errors.New("subscription end date is not set")
	ErrInvalidMonths     = errors.New("at least one month must be paid")
)

// only synced scans count as verified checkpoints
var verified = []patrol.SyncStatus{patrol.StatusCompleted}

type (
	// UserRepository is the part of user.Repository the engine needs.
	UserRepository interface {
		QueryUsers(ctx context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error)
		GetOfficer(ctx context.Context, id string) (user.Officer, error)
		QueryOfficers(ctx context.Context, filter user.QueryFilter) ([]user.Officer, error)
		UpdateOfficer(ctx context.Context, ofc user.Officer) (user.Officer, error)
		GetResident(ctx context.Context, id string) (user.Resident, error)
		QueryResidents(ctx context.Context, filter user.QueryFilter) ([]user.Resident, error)
		UpdateResident(ctx context.Context, res user.Resident) (user.Resident, error)
	}

	// ScanRepository is the part of patrol.Repository the engine needs.
	ScanRepository interface {
		QueryScans(ctx context.Context, filter patrol.ScanFilter) ([]patrol.Scan, error)
	}

	Options struct {
		Users       UserRepository
		Scans       ScanRepository
		Sender      notification.Sender
		Clock       core.Clock
		Logger      core.Logger
		Thresholds  Thresholds
		SweepPolicy Policy // defaults to TargetScans
		AdminEmail  string // fallback admin alert recipient
		Registerer  prometheus.Registerer
	}

	Engine struct {
		users       UserRepository
		scans       ScanRepository
		dispatcher  *Dispatcher
		clock       core.Clock
		logger      core.Logger
		th          Thresholds
		sweepPolicy Policy
		adminEmail  string
		metrics     *metrics
	}
)

func NewEngine(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = core.SystemClock
	}
	if opts.Thresholds == (Thresholds{}) {
		opts.Thresholds = DefaultThresholds()
	}
	if opts.SweepPolicy == nil {
		opts.SweepPolicy = TargetScans{DefaultTarget: opts.Thresholds.DefaultTargetScans}
	}
	return &Engine{
		users:       opts.Users,
		scans:       opts.Scans,
		dispatcher:  NewDispatcher(opts.Sender),
		clock:       opts.Clock,
		logger:      opts.Logger,
		th:          opts.Thresholds,
		sweepPolicy: opts.SweepPolicy,
		adminEmail:  opts.AdminEmail,
		metrics:     newMetrics(opts.Registerer),
	}
}

func (e *Engine) Thresholds() Thresholds { return e.th }

func (e *Engine) dispatch(ctx context.Context, events []Event) {
	if failed := e.dispatcher.Dispatch(ctx, events...); failed > 0 {
		e.metrics.failedMessages.Add(float64(failed))
	}
}

// adminRecipients returns the emails of the active admins, or the fallback admin address.
func (e *Engine) adminRecipients(ctx context.Context) []string {
	admins, err := e.users.QueryUsers(ctx, user.QueryFilter{
		Roles:    []user.Role{user.RoleAdmin},
		Statuses: []user.Status{user.StatusActive},
	})
	if err != nil {
		e.logger.Error("querying admins", errors.Wrap(err, "querying admins"))
	}
	emails := make([]string, 0, len(admins))
	for _, a := range admins {
		if a.Email != "" {
			emails = append(emails, a.Email)
		}
	}
	if len(emails) == 0 && e.adminEmail != "" {
		emails = append(emails, e.adminEmail)
	}
	return emails
}

// CalculateComplianceRate rates house coverage; see the package function.
func (e *Engine) CalculateComplianceRate(assignedHouses []string, scans []patrol.Scan) int {
	return CalculateComplianceRate(assignedHouses, scans)
}

// EvaluateOfficer rates `ofc` on house coverage of `todayScans` and applies the compliance ladder.
// `ofc` is updated in place; notification failures are logged and never undo the update.
func (e *Engine) EvaluateOfficer(ctx context.Context, ofc *user.Officer, todayScans []patrol.Scan) Result {
	rate := CalculateComplianceRate(ofc.AssignedHouses, todayScans)
	updated, res, events := DecideOfficer(*ofc, rate, e.adminRecipients(ctx), e.clock.Now(), e.th)
	*ofc = updated
	e.metrics.actions.WithLabelValues(string(res.Action)).Inc()
	e.dispatch(ctx, events)
	return res
}

// CheckAndReinstateOfficers reactivates the suspended officers whose suspension has ended
// and returns them in input order. Other officers are left untouched.
func (e *Engine) CheckAndReinstateOfficers(ctx context.Context, officers []*user.Officer) []*user.Officer {
	now := e.clock.Now()
	reinstated := make([]*user.Officer, 0)
	for _, ofc := range officers {
		if ofc == nil {
			continue
		}
		updated, events, ok := DecideReinstatement(*ofc, now)
		if !ok {
			continue
		}
		*ofc = updated
		reinstated = append(reinstated, ofc)
		e.metrics.actions.WithLabelValues("reinstated").Inc()
		e.dispatch(ctx, events)
	}
	return reinstated
}

// GenerateComplianceReport rates every officer on house coverage; see the package function.
func (e *Engine) GenerateComplianceReport(officers []user.Officer, scansByOfficerID map[string][]patrol.Scan) Report {
	return GenerateComplianceReport(officers, scansByOfficerID, e.th.MinRate)
}

// GenerateComplianceReport rates every officer on house coverage of their scans.
// Officers rated at least `minRate` are compliant. It never mutates its inputs.
func GenerateComplianceReport(officers []user.Officer, scansByOfficerID map[string][]patrol.Scan, minRate int) Report {
	rep := Report{
		TotalOfficers:  len(officers),
		OfficerDetails: make([]OfficerRow, 0, len(officers)),
	}
	var sum int
	for _, ofc := range officers {
		rate := CalculateComplianceRate(ofc.AssignedHouses, scansByOfficerID[ofc.ID])
		if rate >= minRate {
			rep.CompliantOfficers++
		}
		sum += rate
		rep.OfficerDetails = append(rep.OfficerDetails, OfficerRow{
			OfficerID:      ofc.ID,
			Name:           ofc.Username,
			ComplianceRate: rate,
			Status:         ofc.Status,
		})
	}
	rep.NonCompliantOfficers = rep.TotalOfficers - rep.CompliantOfficers
	if len(officers) > 0 {
		rep.AverageComplianceRate = roundPercent(sum, len(officers)*100)
	}
	return rep
}

// CheckResidentPayment reports how overdue a resident's subscription is.
// Residents overdue within the grace period are reminded; the resident record is not changed.
func (e *Engine) CheckResidentPayment(ctx context.Context, res user.Resident) (PaymentResult, error) {
	if res.SubscriptionEndDate.IsZero() {
		return PaymentResult{}, core.NewFieldError("subscription_end_date", ErrNoSubscriptionEnd)
	}
	_, result, events := DecideResidentPayment(res, e.clock.Now(), e.th)
	if result.Reminded {
		e.metrics.actions.WithLabelValues("payment_reminder").Inc()
		e.dispatch(ctx, events)
	}
	return result, nil
}

// PaymentStatus is CheckResidentPayment without the reminder.
func (e *Engine) PaymentStatus(res user.Resident) (PaymentResult, error) {
	if res.SubscriptionEndDate.IsZero() {
		return PaymentResult{}, core.NewFieldError("subscription_end_date", ErrNoSubscriptionEnd)
	}
	_, result, _ := DecideResidentPayment(res, e.clock.Now(), e.th)
	result.Reminded = false
	return result, nil
}

// PerformComplianceCheck sweeps all active officers, then all active residents, one at a time.
// Officers are rated with the sweep policy over this week's scans. Every record is saved before
// its notifications go out; a user that cannot be processed is logged and skipped.
func (e *Engine) PerformComplianceCheck(ctx context.Context) (SweepSummary, error) {
	now := e.clock.Now()
	summary := SweepSummary{StartedAt: now}
	timer := prometheus.NewTimer(e.metrics.sweepDuration)
	defer timer.ObserveDuration()

	if err := e.sweepOfficers(ctx, now, &summary); err != nil {
		e.metrics.sweeps.WithLabelValues("error").Inc()
		return summary, errors.Wrap(err, "sweeping officers")
	}
	if err := e.sweepResidents(ctx, now, &summary); err != nil {
		e.metrics.sweeps.WithLabelValues("error").Inc()
		return summary, errors.Wrap(err, "sweeping residents")
	}
	e.metrics.sweeps.WithLabelValues("success").Inc()
	e.logger.Info("compliance sweep done", map[string]interface{}{
		"officers_checked":    summary.OfficersChecked,
		"officers_warned":     summary.OfficersWarned,
		"officers_suspended":  summary.OfficersSuspended,
		"residents_checked":   summary.ResidentsChecked,
		"residents_reminded":  summary.ResidentsReminded,
		"residents_suspended": summary.ResidentsSuspended,
		"skipped":             summary.Skipped,
	})
	return summary, nil
}

func (e *Engine) sweepOfficers(ctx context.Context, now time.Time, summary *SweepSummary) error {
	officers, err := e.users.QueryOfficers(ctx, user.QueryFilter{Statuses: []user.Status{user.StatusActive}})
	if err != nil {
		return errors.Wrap(err, "querying officers")
	}
	if len(officers) == 0 {
		return nil
	}

	admins := e.adminRecipients(ctx)
	weekStart := core.StartOfWeek(now)
	for _, ofc := range officers {
		summary.OfficersChecked++
		scans, err := e.scans.QueryScans(ctx, patrol.ScanFilter{
			OfficerIDs: []string{ofc.ID},
			Statuses:   verified,
			From:       weekStart,
		})
		if err != nil {
			summary.Skipped++
			e.logger.Error("sweep: querying scans", errors.Wrapf(err, "officer %s", ofc.ID))
			continue
		}
		ofc.ScansThisWeek = len(scans)

		updated, res, events := DecideOfficer(ofc, e.sweepPolicy.Rate(ofc, scans, now.Sub(weekStart)), admins, now, e.th)
		if _, err := e.users.UpdateOfficer(ctx, updated); err != nil {
			summary.Skipped++
			e.logger.Error("sweep: updating officer", errors.Wrapf(err, "officer %s", ofc.ID))
			continue
		}

		switch res.Action {
		case ActionSuspended:
			summary.OfficersSuspended++
		case ActionWarning:
			summary.OfficersWarned++
		}
		e.metrics.actions.WithLabelValues(string(res.Action)).Inc()
		e.dispatch(ctx, events)
	}
	return nil
}

func (e *Engine) sweepResidents(ctx context.Context, now time.Time, summary *SweepSummary) error {
	residents, err := e.users.QueryResidents(ctx, user.QueryFilter{Statuses: []user.Status{user.StatusActive}})
	if err != nil {
		return errors.Wrap(err, "querying residents")
	}

	for _, res := range residents {
		summary.ResidentsChecked++
		if res.SubscriptionEndDate.IsZero() {
			summary.Skipped++
			e.logger.Warn("sweep: skipping resident", errors.Wrapf(ErrNoSubscriptionEnd, "resident %s", res.ID))
			continue
		}

		updated, result, events := DecideResidentPayment(res, now, e.th)
		if updated.Status != res.Status || updated.PaymentStatus != res.PaymentStatus {
			if _, err := e.users.UpdateResident(ctx, updated); err != nil {
				summary.Skipped++
				e.logger.Error("sweep: updating resident", errors.Wrapf(err, "resident %s", res.ID))
				continue
			}
		}

		switch {
		case !result.Compliant:
			summary.ResidentsSuspended++
			e.metrics.actions.WithLabelValues("resident_suspended").Inc()
		case result.Reminded:
			summary.ResidentsReminded++
			e.metrics.actions.WithLabelValues("payment_reminder").Inc()
		}
		e.dispatch(ctx, events)
	}
	return nil
}

// EvaluateOfficerByID evaluates an officer on today's scans (UTC) and saves the outcome.
func (e *Engine) EvaluateOfficerByID(ctx context.Context, id string) (Result, user.Officer, error) {
	ofc, err := e.users.GetOfficer(ctx, id)
	if err != nil {
		return Result{}, user.Officer{}, err
	}

	dayStart := core.StartOfDay(e.clock.Now())
	scans, err := e.scans.QueryScans(ctx, patrol.ScanFilter{
		OfficerIDs: []string{id},
		Statuses:   verified,
		From:       dayStart,
		To:         dayStart.AddDate(0, 0, 1),
	})
	if err != nil {
		return Result{}, user.Officer{}, errors.Wrap(err, "querying scans")
	}

	rate := CalculateComplianceRate(ofc.AssignedHouses, scans)
	updated, res, events := DecideOfficer(ofc, rate, e.adminRecipients(ctx), e.clock.Now(), e.th)
	updated, err = e.users.UpdateOfficer(ctx, updated)
	if err != nil {
		return Result{}, user.Officer{}, errors.Wrap(err, "updating officer")
	}
	e.metrics.actions.WithLabelValues(string(res.Action)).Inc()
	e.dispatch(ctx, events)
	return res, updated, nil
}

// ReinstateExpired reactivates and saves every suspended officer whose suspension has ended.
func (e *Engine) ReinstateExpired(ctx context.Context) ([]user.Officer, error) {
	officers, err := e.users.QueryOfficers(ctx, user.QueryFilter{Statuses: []user.Status{user.StatusSuspended}})
	if err != nil {
		return nil, errors.Wrap(err, "querying suspended officers")
	}

	now := e.clock.Now()
	reinstated := make([]user.Officer, 0)
	for _, ofc := range officers {
		updated, events, ok := DecideReinstatement(ofc, now)
		if !ok {
			continue
		}
		if updated, err = e.users.UpdateOfficer(ctx, updated); err != nil {
			e.logger.Error("reinstating officer", errors.Wrapf(err, "officer %s", ofc.ID))
			continue
		}
		reinstated = append(reinstated, updated)
		e.metrics.actions.WithLabelValues("reinstated").Inc()
		e.dispatch(ctx, events)
	}
	return reinstated, nil
}

func (e *Engine) loadOfficerScans(ctx context.Context, from, to time.Time) ([]user.Officer, map[string][]patrol.Scan, error) {
	officers, err := e.users.QueryOfficers(ctx, user.QueryFilter{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "querying officers")
	}
	ids := make([]string, 0, len(officers))
	for _, ofc := range officers {
		ids = append(ids, ofc.ID)
	}
	byOfficer := make(map[string][]patrol.Scan, len(officers))
	if len(ids) == 0 {
		return officers, byOfficer, nil
	}

	scans, err := e.scans.QueryScans(ctx, patrol.ScanFilter{OfficerIDs: ids, Statuses: verified, From: from, To: to})
	if err != nil {
		return nil, nil, errors.Wrap(err, "querying scans")
	}
	for _, s := range scans {
		byOfficer[s.OfficerID] = append(byOfficer[s.OfficerID], s)
	}
	return officers, byOfficer, nil
}

// Report builds the compliance report of all officers over the scans in [from, to).
func (e *Engine) Report(ctx context.Context, from, to time.Time) (Report, error) {
	officers, byOfficer, err := e.loadOfficerScans(ctx, from, to)
	if err != nil {
		return Report{}, err
	}
	rep := GenerateComplianceReport(officers, byOfficer, e.th.MinRate)
	rep.From, rep.To, rep.GeneratedAt = from, to, e.clock.Now()
	return rep, nil
}

// AuditReport details the patrols of all officers over [from, to), highest rate first.
func (e *Engine) AuditReport(ctx context.Context, from, to time.Time) (AuditReport, error) {
	officers, byOfficer, err := e.loadOfficerScans(ctx, from, to)
	if err != nil {
		return AuditReport{}, err
	}

	rep := AuditReport{From: from, To: to, GeneratedAt: e.clock.Now(), Rows: make([]AuditRow, 0, len(officers))}
	for _, ofc := range officers {
		scans := byOfficer[ofc.ID]
		assigned := core.UniqueStrings(ofc.AssignedHouses)
		row := AuditRow{
			OfficerID:      ofc.ID,
			Name:           ofc.Name,
			BadgeNumber:    ofc.BadgeNumber,
			AssignedHouses: len(assigned),
			TotalScans:     len(scans),
			ComplianceRate: CalculateComplianceRate(assigned, scans),
			Status:         ofc.Status,
		}
		scanned := make(map[string]struct{})
		for _, s := range scans {
			scanned[s.HouseID] = struct{}{}
			if row.LastScanAt == nil || s.Timestamp.After(*row.LastScanAt) {
				ts := s.Timestamp
				row.LastScanAt = &ts
			}
		}
		row.ScannedHouses = len(scanned)

		if row.ComplianceRate >= e.th.MinRate {
			rep.CompliantOfficers++
		} else {
			rep.NonCompliantOfficers++
		}
		if ofc.Status == user.StatusSuspended {
			rep.SuspendedOfficers++
		}
		rep.Rows = append(rep.Rows, row)
	}
	sort.SliceStable(rep.Rows, func(i, j int) bool { return rep.Rows[i].ComplianceRate > rep.Rows[j].ComplianceRate })
	return rep, nil
}

// ApplyPayment records `months` of subscription paid by a resident and saves them.
// A suspended resident is reactivated.
func (e *Engine) ApplyPayment(ctx context.Context, residentID string, months int) (user.Resident, error) {
	if months < 1 {
		return user.Resident{}, core.NewFieldError("months", ErrInvalidMonths)
	}
	res, err := e.users.GetResident(ctx, residentID)
	if err != nil {
		return user.Resident{}, err
	}

	updated, events := DecidePayment(res, months, e.clock.Now())
	updated, err = e.users.UpdateResident(ctx, updated)
	if err != nil {
		return user.Resident{}, errors.Wrap(err, "updating resident")
	}
	e.dispatch(ctx, events)
	return updated, nil
}
