package compliance

import (
	"fmt"
	"math"
	"time"

	"github.com/trezcool/neighborguard/core/user"
)

// EventKind names the notification events raised by compliance decisions.
type EventKind string

const (
	EventOfficerSuspended    EventKind = "officer_suspended"
	EventAdminAlert          EventKind = "admin_alert"
	EventOfficerWarned       EventKind = "officer_warned"
	EventOfficerReinstated   EventKind = "officer_reinstated"
	EventPaymentReminder     EventKind = "payment_reminder"
	EventResidentSuspended   EventKind = "resident_suspended"
	EventPaymentReceived     EventKind = "payment_received"
	EventResidentReactivated EventKind = "resident_reactivated"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

type Message struct {
	Channel Channel
	To      string
	Subject string // email only
	Body    string
}

// Event is a group of messages sent together; its messages are independent of each other.
type Event struct {
	Kind     EventKind
	UserID   string
	Messages []Message
}

const dateLayout = "Jan 2, 2006"

const (
	subjOfficerSuspended   = "Account Suspended - Low Compliance"
	subjAdminAlert         = "Officer Auto-Suspended"
	subjWarning            = "Patrol Compliance Warning"
	subjReactivated        = "Account Reactivated"
	subjPaymentReminder    = "Payment Overdue - NeighborGuard"
	subjResidentSuspended  = "Account Suspended"
	subjPaymentReceived    = "Payment Received - NeighborGuard"
	msgReactivated         = "Your suspension period has ended. Your account has been reactivated. Please ensure you maintain compliance with patrol requirements."
	msgResidentReactivated = "Your payment has been received and your account has been reactivated."
	fmtOfficerSuspended    = "Your account has been automatically suspended due to low patrol compliance (%d%%). Suspension will be lifted on %s."
	fmtAdminAlert          = "Officer %s (Badge: %s) has been automatically suspended due to %d%% compliance rate."
	fmtWarning             = "Alert: Your patrol compliance rate is %d%%. Please complete your assigned checkpoints."
	fmtPaymentReminder     = "Your subscription payment is %d days overdue. Please make a payment to avoid account suspension."
	fmtResidentSuspended   = "Your account has been suspended. Reason: Payment overdue by %d days."
	fmtPaymentReceived     = "Thank you! Your payment has been received. Your subscription is active until %s."
)

// emailAndSMS builds the same message for both channels of `usr`.
func emailAndSMS(usr user.User, subject, body string) []Message {
	return []Message{
		{Channel: ChannelEmail, To: usr.Email, Subject: subject, Body: body},
		{Channel: ChannelSMS, To: usr.Phone, Body: body},
	}
}

// DecideOfficer applies the compliance ladder to an officer rated `rate`:
// below MinRate the officer is suspended until now+SuspensionPeriod and admins are alerted,
// below WarningRate the officer is warned. The returned officer carries the new rate.
func DecideOfficer(ofc user.Officer, rate int, admins []string, now time.Time, th Thresholds) (user.Officer, Result, []Event) {
	rate = clamp(rate)
	ofc.ComplianceRate = rate

	switch {
	case rate < th.MinRate:
		end := now.Add(th.SuspensionPeriod).UTC()
		ofc.Status = user.StatusSuspended
		ofc.SuspensionEndDate = &end
		ofc.UpdatedAt = now

		body := fmt.Sprintf(fmtOfficerSuspended, rate, end.Format(dateLayout))
		events := []Event{{Kind: EventOfficerSuspended, UserID: ofc.ID, Messages: emailAndSMS(ofc.User, subjOfficerSuspended, body)}}

		alert := fmt.Sprintf(fmtAdminAlert, ofc.Username, ofc.BadgeNumber, rate)
		adminMsgs := make([]Message, 0, len(admins))
		for _, to := range admins {
			adminMsgs = append(adminMsgs, Message{Channel: ChannelEmail, To: to, Subject: subjAdminAlert, Body: alert})
		}
		if len(adminMsgs) > 0 {
			events = append(events, Event{Kind: EventAdminAlert, UserID: ofc.ID, Messages: adminMsgs})
		}
		return ofc, Result{ComplianceRate: rate, Compliant: false, Action: ActionSuspended}, events

	case rate < th.WarningRate:
		body := fmt.Sprintf(fmtWarning, rate)
		events := []Event{{Kind: EventOfficerWarned, UserID: ofc.ID, Messages: emailAndSMS(ofc.User, subjWarning, body)}}
		return ofc, Result{ComplianceRate: rate, Compliant: true, Action: ActionWarning}, events
	}
	return ofc, Result{ComplianceRate: rate, Compliant: true, Action: ActionNone}, nil
}

// DecideReinstatement reactivates a suspended officer whose suspension has ended.
// ok is false, and the officer unchanged, otherwise.
func DecideReinstatement(ofc user.Officer, now time.Time) (user.Officer, []Event, bool) {
	if ofc.Status != user.StatusSuspended || ofc.SuspensionEndDate == nil || ofc.SuspensionEndDate.After(now) {
		return ofc, nil, false
	}
	ofc.Status = user.StatusActive
	ofc.SuspensionEndDate = nil
	ofc.UpdatedAt = now
	return ofc, []Event{{Kind: EventOfficerReinstated, UserID: ofc.ID, Messages: emailAndSMS(ofc.User, subjReactivated, msgReactivated)}}, true
}

// DaysOverdue returns the whole days elapsed since `end`, negative when `end` is ahead.
func DaysOverdue(end, now time.Time) int {
	return int(math.Floor(now.Sub(end).Hours() / 24))
}

// DecideResidentPayment checks a resident's subscription end date: overdue beyond the grace
// period suspends the resident; any lesser overdue reminds them and marks the payment overdue.
func DecideResidentPayment(res user.Resident, now time.Time, th Thresholds) (user.Resident, PaymentResult, []Event) {
	days := DaysOverdue(res.SubscriptionEndDate, now)
	switch {
	case days > th.PaymentGraceDays:
		res.Status = user.StatusSuspended
		res.PaymentStatus = user.PaymentSuspended
		res.UpdatedAt = now
		body := fmt.Sprintf(fmtResidentSuspended, days)
		return res, PaymentResult{Compliant: false, DaysOverdue: days},
			[]Event{{Kind: EventResidentSuspended, UserID: res.ID, Messages: emailAndSMS(res.User, subjResidentSuspended, body)}}

	case days > 0:
		if res.PaymentStatus != user.PaymentOverdue {
			res.PaymentStatus = user.PaymentOverdue
			res.UpdatedAt = now
		}
		body := fmt.Sprintf(fmtPaymentReminder, days)
		return res, PaymentResult{Compliant: true, DaysOverdue: days, Reminded: true},
			[]Event{{Kind: EventPaymentReminder, UserID: res.ID, Messages: emailAndSMS(res.User, subjPaymentReminder, body)}}
	}
	return res, PaymentResult{Compliant: true}, nil
}

// DecidePayment extends a resident's subscription by `months` from the later of now and its current end.
// A suspended resident is reactivated.
func DecidePayment(res user.Resident, months int, now time.Time) (user.Resident, []Event) {
	start := res.SubscriptionEndDate
	if start.Before(now) {
		start = now
	}
	res.SubscriptionEndDate = start.AddDate(0, months, 0).UTC()
	res.PaymentStatus = user.PaymentActive
	res.UpdatedAt = now

	body := fmt.Sprintf(fmtPaymentReceived, res.SubscriptionEndDate.Format(dateLayout))
	events := []Event{{Kind: EventPaymentReceived, UserID: res.ID, Messages: emailAndSMS(res.User, subjPaymentReceived, body)}}
	if res.Status == user.StatusSuspended {
		res.Status = user.StatusActive
		events = append(events, Event{Kind: EventResidentReactivated, UserID: res.ID, Messages: emailAndSMS(res.User, subjReactivated, msgResidentReactivated)})
	}
	return res, events
}
