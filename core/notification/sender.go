package notification

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/neighborguard/core"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

var errNoRecipient = errors.New("no recipient")

// Sender delivers notifications on a best-effort basis: it never panics nor returns errors,
// failures are logged and reported as false.
type Sender interface {
	SendEmail(ctx context.Context, to, subject, body string) bool
	SendSMS(ctx context.Context, to, message string) bool
}

type sender struct {
	mailSvc core.EmailService
	smsSvc  core.SMSService
	logger  core.Logger
	sent    *prometheus.CounterVec
}

var _ Sender = (*sender)(nil)

// NewSender builds a Sender on top of the email and SMS services.
// Counters are registered on `reg` when not nil.
func NewSender(mailSvc core.EmailService, smsSvc core.SMSService, logger core.Logger, reg prometheus.Registerer) Sender {
	s := &sender{
		mailSvc: mailSvc,
		smsSvc:  smsSvc,
		logger:  logger,
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neighborguard",
			Subsystem: "notification",
			Name:      "sent_total",
			Help:      "Notifications sent, by channel and result.",
		}, []string{"channel", "result"}),
	}
	if reg != nil {
		reg.MustRegister(s.sent)
	}
	return s
}

func (s *sender) SendEmail(ctx context.Context, to, subject, body string) bool {
	return s.deliver(ChannelEmail, to, func() error {
		if s.mailSvc == nil {
			return errors.New("no email service")
		}
		return s.mailSvc.SendMessage(ctx, core.NewTextEmail(to, subject, body))
	})
}

func (s *sender) SendSMS(ctx context.Context, to, message string) bool {
	return s.deliver(ChannelSMS, to, func() error {
		if s.smsSvc == nil {
			return errors.New("no sms service")
		}
		return s.smsSvc.SendSMS(ctx, core.SMSMessage{To: to, Body: message})
	})
}

func (s *sender) deliver(channel, to string, send func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			s.logger.Error("notification panicked", errors.New(fmt.Sprint(r)), channel, to)
		}
		result := "success"
		if !ok {
			result = "failure"
		}
		s.sent.WithLabelValues(channel, result).Inc()
	}()

	if to == "" {
		s.logger.Warn("notification skipped", errNoRecipient, channel)
		return false
	}
	if err := send(); err != nil {
		s.logger.Error("notification failed", errors.Wrapf(err, "sending %s to %s", channel, to))
		return false
	}
	return true
}
