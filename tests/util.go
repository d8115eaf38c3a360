package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap/zaptest"

	"github.com/trezcool/neighborguard/core"
	"github.com/trezcool/neighborguard/core/notification"
	"github.com/trezcool/neighborguard/core/user"
	"github.com/trezcool/neighborguard/services/logger"
)

// Logger writes to the test log.
func Logger(t *testing.T) core.Logger {
	return logsvc.NewLocalLogger(zaptest.NewLogger(t))
}

// Validator returns a validator with every custom tag and english translations registered.
func Validator() (*validator.Validate, ut.Translator) {
	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

type (
	Email struct {
		To, Subject, Body string
	}

	SMS struct {
		To, Body string
	}

	// Outbox is a notification.Sender recording what it is asked to send.
	Outbox struct {
		mu       sync.Mutex
		Emails   []Email
		SMSs     []SMS
		FailTo   map[string]bool // recipients whose messages fail
		sequence []string        // "email:<to>" / "sms:<to>" in send order
	}
)

var _ notification.Sender = (*Outbox)(nil)

func NewOutbox() *Outbox {
	return &Outbox{FailTo: make(map[string]bool)}
}

func (o *Outbox) SendEmail(_ context.Context, to, subject, body string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sequence = append(o.sequence, "email:"+to)
	if to == "" || o.FailTo[to] {
		return false
	}
	o.Emails = append(o.Emails, Email{To: to, Subject: subject, Body: body})
	return true
}

func (o *Outbox) SendSMS(_ context.Context, to, message string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sequence = append(o.sequence, "sms:"+to)
	if to == "" || o.FailTo[to] {
		return false
	}
	o.SMSs = append(o.SMSs, SMS{To: to, Body: message})
	return true
}

// EmailsTo returns the emails delivered to `to`.
func (o *Outbox) EmailsTo(to string) []Email {
	o.mu.Lock()
	defer o.mu.Unlock()
	emails := make([]Email, 0)
	for _, e := range o.Emails {
		if e.To == to {
			emails = append(emails, e)
		}
	}
	return emails
}

// SMSsTo returns the SMSs delivered to `to`.
func (o *Outbox) SMSsTo(to string) []SMS {
	o.mu.Lock()
	defer o.mu.Unlock()
	smss := make([]SMS, 0)
	for _, s := range o.SMSs {
		if s.To == to {
			smss = append(smss, s)
		}
	}
	return smss
}

// Sequence returns the attempted deliveries in order.
func (o *Outbox) Sequence() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string{}, o.sequence...)
}

func (o *Outbox) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Emails, o.SMSs, o.sequence = nil, nil, nil
}

func newUser(t *testing.T, name, uname, pwd string, createdAt time.Time) user.User {
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     uname + "@neighborguard.test",
		Status:    user.StatusActive,
		CreatedAt: createdAt.UTC(),
		UpdatedAt: createdAt.UTC(),
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("SetPassword(): %v", err)
		}
	}
	return usr
}

func CreateAdmin(t *testing.T, repo user.Repository, name, uname, pwd string) user.User {
	usr := newUser(t, name, uname, pwd, time.Now())
	usr.Role = user.RoleAdmin
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateAdmin(): %v", err)
	}
	return usr
}

// CreateOfficer creates an active officer reachable at "<uname>@neighborguard.test" and "+<uname>".
func CreateOfficer(t *testing.T, repo user.Repository, name, uname, pwd string, houses ...string) user.Officer {
	usr := newUser(t, name, uname, pwd, time.Now())
	usr.Phone = "+" + uname
	if houses == nil {
		houses = []string{}
	}
	ofc, err := repo.CreateOfficer(context.Background(), user.Officer{
		User:           usr,
		BadgeNumber:    "B-" + uname,
		AssignedHouses: houses,
		ComplianceRate: 100,
	})
	if err != nil {
		t.Fatalf("CreateOfficer(): %v", err)
	}
	return ofc
}

// CreateResident creates an active resident reachable at "<uname>@neighborguard.test" and "+<uname>".
func CreateResident(t *testing.T, repo user.Repository, name, uname, pwd, houseID string, subscriptionEnd time.Time) user.Resident {
	usr := newUser(t, name, uname, pwd, time.Now())
	usr.Phone = "+" + uname
	res, err := repo.CreateResident(context.Background(), user.Resident{
		User:                usr,
		HouseID:             houseID,
		PaymentStatus:       user.PaymentActive,
		SubscriptionEndDate: subscriptionEnd.UTC(),
	})
	if err != nil {
		t.Fatalf("CreateResident(): %v", err)
	}
	return res
}
