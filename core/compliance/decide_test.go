package compliance

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/trezcool/neighborguard/core/patrol"
	"github.com/trezcool/neighborguard/core/user"
)

var now = time.Date(2024, 1, 17, 10, 0, 0, 0, time.UTC) // a Wednesday

func scansOf(houses ...string) []patrol.Scan {
	scans := make([]patrol.Scan, 0, len(houses))
	for _, h := range houses {
		scans = append(scans, patrol.Scan{HouseID: h, Timestamp: now, Status: patrol.StatusCompleted})
	}
	return scans
}

func TestCalculateComplianceRate(t *testing.T) {
	tests := []struct {
		name     string
		assigned []string
		scans    []patrol.Scan
		want     int
	}{
		{"no assigned houses", nil, scansOf("h1"), 100},
		{"no scans", []string{"h1", "h2"}, nil, 0},
		{"all scanned", []string{"h1", "h2"}, scansOf("h2", "h1"), 100},
		{"three of four", []string{"h1", "h2", "h3", "h4"}, scansOf("h1", "h2", "h3"), 75},
		{"repeated scans count once", []string{"h1", "h2", "h3", "h4"}, scansOf("h1", "h1", "h1"), 25},
		{"unassigned houses ignored", []string{"h1", "h2"}, scansOf("h1", "h9"), 50},
		{"duplicate assignments count once", []string{"h1", "h1", "h2"}, scansOf("h1"), 50},
		{"rounds to nearest", []string{"h1", "h2", "h3"}, scansOf("h1", "h2"), 67},
		{"rounds half up", []string{"h1", "h2", "h3", "h4", "h5", "h6", "h7", "h8"}, scansOf("h1"), 13},
		{"three of five with repeats", []string{"h1", "h2", "h3", "h4", "h5"}, scansOf("h1", "h2", "h2", "h3", "h3", "h9"), 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateComplianceRate(tt.assigned, tt.scans); got != tt.want {
				t.Errorf("CalculateComplianceRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalculateComplianceRate_monotonic(t *testing.T) {
	assigned := []string{"h1", "h2", "h3", "h4", "h5", "h6", "h7"}
	var (
		scans []patrol.Scan
		prev  = CalculateComplianceRate(assigned, nil)
	)
	for _, h := range append(assigned, "h9") {
		scans = append(scans, scansOf(h, h)...)
		got := CalculateComplianceRate(assigned, scans)
		if got < prev {
			t.Fatalf("rate dropped from %d to %d after scanning %s", prev, got, h)
		}
		prev = got
	}
	if prev != 100 {
		t.Errorf("CalculateComplianceRate(all scanned) = %v, want 100", prev)
	}
}

func TestTargetScansRate(t *testing.T) {
	tests := []struct {
		count, target, want int
	}{
		{0, 20, 0},
		{-3, 20, 0},
		{14, 20, 70},
		{17, 20, 85},
		{20, 20, 100},
		{35, 20, 100},
		{10, 0, 50}, // default target
		{16, 23, 70},
	}
	for _, tt := range tests {
		if got := TargetScansRate(tt.count, tt.target); got != tt.want {
			t.Errorf("TargetScansRate(%d, %d) = %v, want %v", tt.count, tt.target, got, tt.want)
		}
	}
}

func TestTargetScansRate_roundedBeforeThresholds(t *testing.T) {
	// 16/23 is 69.57%: the rounded rate reaches the suspension threshold
	_, res, _ := DecideOfficer(newOfficer(), TargetScansRate(16, 23), nil, now, DefaultThresholds())
	if res.Action != ActionWarning || !res.Compliant || res.ComplianceRate != 70 {
		t.Errorf("DecideOfficer() = %+v, want a warning at 70", res)
	}
}

func TestProratedTarget(t *testing.T) {
	tests := []struct {
		name    string
		target  int
		elapsed time.Duration
		want    int
	}{
		{"week start", 20, 0, 0},
		{"negative", 20, -time.Hour, 0},
		{"monday morning", 20, 9 * time.Hour, 1},
		{"wednesday morning", 20, 58 * time.Hour, 6},
		{"half week", 20, week / 2, 10},
		{"full week", 20, week, 20},
		{"past the week", 20, 2 * week, 20},
		{"default target", 0, week, user.DefaultTargetScans},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProratedTarget(tt.target, tt.elapsed); got != tt.want {
				t.Errorf("ProratedTarget() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolicies(t *testing.T) {
	ofc := user.Officer{AssignedHouses: []string{"h1", "h2"}, ScansThisWeek: 10, TargetScans: 40}

	if got := (HouseCoverage{}).Rate(ofc, scansOf("h1"), time.Hour); got != 50 {
		t.Errorf("HouseCoverage.Rate() = %v, want %v", got, 50)
	}
	if got := (TargetScans{DefaultTarget: 20}).Rate(ofc, nil, week); got != 25 {
		t.Errorf("TargetScans.Rate(nil) = %v, want %v", got, 25)
	}
	if got := (TargetScans{DefaultTarget: 20}).Rate(ofc, nil, week/2); got != 50 {
		t.Errorf("TargetScans.Rate(half week) = %v, want %v", got, 50)
	}
	ofc.TargetScans = 0
	if got := (TargetScans{DefaultTarget: 20}).Rate(ofc, scansOf("h1", "h1", "h2"), week); got != 15 {
		t.Errorf("TargetScans.Rate() = %v, want %v", got, 15)
	}
	if got := (TargetScans{DefaultTarget: 20}).Rate(ofc, nil, time.Hour); got != 100 {
		t.Errorf("TargetScans.Rate(nothing due) = %v, want %v", got, 100)
	}

	for _, name := range []string{PolicyHouseCoverage, PolicyTargetScans, ""} {
		p, err := PolicyByName(name, 20)
		if err != nil {
			t.Errorf("PolicyByName(%q) error = %v", name, err)
			continue
		}
		if name != "" && p.Name() != name {
			t.Errorf("PolicyByName(%q).Name() = %v", name, p.Name())
		}
	}
	if _, err := PolicyByName("random", 20); err == nil {
		t.Errorf("PolicyByName(random) error = nil, want error")
	}
}

func newOfficer() user.Officer {
	return user.Officer{
		User: user.User{
			ID:       "o1",
			Role:     user.RoleOfficer,
			Name:     "Thabo Mokoena",
			Username: "thabo",
			Email:    "thabo@test.com",
			Phone:    "+27821234567",
			Status:   user.StatusActive,
		},
		BadgeNumber:    "B-001",
		AssignedHouses: []string{"h1", "h2", "h3", "h4"},
		ComplianceRate: 100,
	}
}

func TestDecideOfficer(t *testing.T) {
	th := DefaultThresholds()
	admins := []string{"admin@test.com", "chief@test.com"}

	tests := []struct {
		rate       int
		wantAction Action
		wantOK     bool
		wantStatus user.Status
		wantKinds  []EventKind
	}{
		{0, ActionSuspended, false, user.StatusSuspended, []EventKind{EventOfficerSuspended, EventAdminAlert}},
		{69, ActionSuspended, false, user.StatusSuspended, []EventKind{EventOfficerSuspended, EventAdminAlert}},
		{70, ActionWarning, true, user.StatusActive, []EventKind{EventOfficerWarned}},
		{84, ActionWarning, true, user.StatusActive, []EventKind{EventOfficerWarned}},
		{85, ActionNone, true, user.StatusActive, nil},
		{100, ActionNone, true, user.StatusActive, nil},
	}
	for _, tt := range tests {
		ofc, res, events := DecideOfficer(newOfficer(), tt.rate, admins, now, th)
		want := Result{ComplianceRate: tt.rate, Compliant: tt.wantOK, Action: tt.wantAction}
		if res != want {
			t.Errorf("DecideOfficer(%d) result = %+v, want %+v", tt.rate, res, want)
		}
		if ofc.Status != tt.wantStatus {
			t.Errorf("DecideOfficer(%d) status = %v, want %v", tt.rate, ofc.Status, tt.wantStatus)
		}
		if ofc.ComplianceRate != tt.rate {
			t.Errorf("DecideOfficer(%d) ComplianceRate = %v, want %v", tt.rate, ofc.ComplianceRate, tt.rate)
		}
		if (ofc.SuspensionEndDate != nil) != (tt.wantStatus == user.StatusSuspended) {
			t.Errorf("DecideOfficer(%d) SuspensionEndDate = %v", tt.rate, ofc.SuspensionEndDate)
		}
		var kinds []EventKind
		for _, ev := range events {
			kinds = append(kinds, ev.Kind)
		}
		if !reflect.DeepEqual(kinds, tt.wantKinds) {
			t.Errorf("DecideOfficer(%d) events = %v, want %v", tt.rate, kinds, tt.wantKinds)
		}
	}
}

func TestDecideOfficer_Suspension(t *testing.T) {
	ofc, _, events := DecideOfficer(newOfficer(), 50, []string{"admin@test.com"}, now, DefaultThresholds())

	wantEnd := now.Add(7 * 24 * time.Hour)
	if ofc.SuspensionEndDate == nil || !ofc.SuspensionEndDate.Equal(wantEnd) {
		t.Fatalf("SuspensionEndDate = %v, want %v", ofc.SuspensionEndDate, wantEnd)
	}

	wantBody := "Your account has been automatically suspended due to low patrol compliance (50%). Suspension will be lifted on Jan 24, 2024."
	wantOfficer := []Message{
		{Channel: ChannelEmail, To: "thabo@test.com", Subject: "Account Suspended - Low Compliance", Body: wantBody},
		{Channel: ChannelSMS, To: "+27821234567", Body: wantBody},
	}
	if !reflect.DeepEqual(events[0].Messages, wantOfficer) {
		t.Errorf("officer messages = %+v, want %+v", events[0].Messages, wantOfficer)
	}
	wantAdmin := []Message{{
		Channel: ChannelEmail,
		To:      "admin@test.com",
		Subject: "Officer Auto-Suspended",
		Body:    "Officer thabo (Badge: B-001) has been automatically suspended due to 50% compliance rate.",
	}}
	if !reflect.DeepEqual(events[1].Messages, wantAdmin) {
		t.Errorf("admin messages = %+v, want %+v", events[1].Messages, wantAdmin)
	}

	// nobody to alert
	_, _, events = DecideOfficer(newOfficer(), 50, nil, now, DefaultThresholds())
	if len(events) != 1 {
		t.Errorf("DecideOfficer(no admins) events = %d, want %d", len(events), 1)
	}
}

func TestDecideReinstatement(t *testing.T) {
	past, future := now.Add(-time.Hour), now.Add(time.Hour)
	suspended := func(end *time.Time) user.Officer {
		ofc := newOfficer()
		ofc.Status = user.StatusSuspended
		ofc.SuspensionEndDate = end
		return ofc
	}
	active := newOfficer()

	tests := []struct {
		name string
		ofc  user.Officer
		want bool
	}{
		{"suspension ended", suspended(&past), true},
		{"suspension ends now", suspended(&now), true},
		{"suspension running", suspended(&future), false},
		{"no end date", suspended(nil), false},
		{"active officer", active, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ofc, events, ok := DecideReinstatement(tt.ofc, now)
			if ok != tt.want {
				t.Fatalf("DecideReinstatement() ok = %v, want %v", ok, tt.want)
			}
			if !ok {
				if !reflect.DeepEqual(ofc, tt.ofc) || events != nil {
					t.Errorf("DecideReinstatement() changed officer: %+v, events %v", ofc, events)
				}
				return
			}
			if ofc.Status != user.StatusActive || ofc.SuspensionEndDate != nil {
				t.Errorf("DecideReinstatement() = status %v, end %v", ofc.Status, ofc.SuspensionEndDate)
			}
			if len(events) != 1 || len(events[0].Messages) != 2 || events[0].Messages[0].Subject != "Account Reactivated" {
				t.Errorf("DecideReinstatement() events = %+v", events)
			}
		})
	}
}

func TestDaysOverdue(t *testing.T) {
	tests := []struct {
		end  time.Time
		want int
	}{
		{now, 0},
		{now.Add(-23 * time.Hour), 0},
		{now.Add(-24 * time.Hour), 1},
		{now.AddDate(0, 0, -60), 60},
		{now.AddDate(0, 0, -61), 61},
		{now.Add(time.Hour), -1},
	}
	for _, tt := range tests {
		if got := DaysOverdue(tt.end, now); got != tt.want {
			t.Errorf("DaysOverdue(%v) = %v, want %v", tt.end, got, tt.want)
		}
	}
}

func newResident(end time.Time) user.Resident {
	return user.Resident{
		User: user.User{
			ID:     "r1",
			Role:   user.RoleResident,
			Name:   "Naledi",
			Email:  "naledi@test.com",
			Phone:  "+27831234567",
			Status: user.StatusActive,
		},
		HouseID:             "h1",
		PaymentStatus:       user.PaymentActive,
		SubscriptionEndDate: end,
	}
}

func TestDecideResidentPayment(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		name          string
		end           time.Time
		want          PaymentResult
		wantStatus    user.Status
		wantPayStatus user.PaymentStatus
		wantBody      string
	}{
		{"paid ahead", now.AddDate(0, 1, 0), PaymentResult{Compliant: true}, user.StatusActive, user.PaymentActive, ""},
		{"due today", now, PaymentResult{Compliant: true}, user.StatusActive, user.PaymentActive, ""},
		{
			"overdue", now.AddDate(0, 0, -10),
			PaymentResult{Compliant: true, DaysOverdue: 10, Reminded: true},
			user.StatusActive, user.PaymentOverdue,
			"Your subscription payment is 10 days overdue. Please make a payment to avoid account suspension.",
		},
		{
			"at grace limit", now.AddDate(0, 0, -60),
			PaymentResult{Compliant: true, DaysOverdue: 60, Reminded: true},
			user.StatusActive, user.PaymentOverdue,
			"Your subscription payment is 60 days overdue. Please make a payment to avoid account suspension.",
		},
		{
			"beyond grace", now.AddDate(0, 0, -61),
			PaymentResult{Compliant: false, DaysOverdue: 61},
			user.StatusSuspended, user.PaymentSuspended,
			"Your account has been suspended. Reason: Payment overdue by 61 days.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, got, events := DecideResidentPayment(newResident(tt.end), now, th)
			if got != tt.want {
				t.Errorf("DecideResidentPayment() = %+v, want %+v", got, tt.want)
			}
			if res.Status != tt.wantStatus || res.PaymentStatus != tt.wantPayStatus {
				t.Errorf("DecideResidentPayment() status = %v/%v, want %v/%v", res.Status, res.PaymentStatus, tt.wantStatus, tt.wantPayStatus)
			}
			if tt.wantBody == "" {
				if events != nil {
					t.Errorf("DecideResidentPayment() events = %+v, want none", events)
				}
				return
			}
			if len(events) != 1 || len(events[0].Messages) != 2 || events[0].Messages[0].Body != tt.wantBody {
				t.Errorf("DecideResidentPayment() events = %+v, want body %q", events, tt.wantBody)
			}
		})
	}
}

func TestDecidePayment(t *testing.T) {
	t.Run("lapsed subscription restarts now", func(t *testing.T) {
		res := newResident(now.AddDate(0, 0, -70))
		res.Status, res.PaymentStatus = user.StatusSuspended, user.PaymentSuspended

		got, events := DecidePayment(res, 1, now)
		if want := now.AddDate(0, 1, 0); !got.SubscriptionEndDate.Equal(want) {
			t.Errorf("SubscriptionEndDate = %v, want %v", got.SubscriptionEndDate, want)
		}
		if got.Status != user.StatusActive || got.PaymentStatus != user.PaymentActive {
			t.Errorf("status = %v/%v, want active/active", got.Status, got.PaymentStatus)
		}
		if len(events) != 2 || events[0].Kind != EventPaymentReceived || events[1].Kind != EventResidentReactivated {
			t.Errorf("events = %+v", events)
		}
		if !strings.Contains(events[0].Messages[0].Body, "Feb 17, 2024") {
			t.Errorf("payment body = %q", events[0].Messages[0].Body)
		}
	})

	t.Run("running subscription is extended", func(t *testing.T) {
		end := now.AddDate(0, 0, 10)
		got, events := DecidePayment(newResident(end), 3, now)
		if want := end.AddDate(0, 3, 0); !got.SubscriptionEndDate.Equal(want) {
			t.Errorf("SubscriptionEndDate = %v, want %v", got.SubscriptionEndDate, want)
		}
		if len(events) != 1 {
			t.Errorf("events = %d, want %d", len(events), 1)
		}
	})
}
