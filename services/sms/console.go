package smssvc

import (
	"context"
	"log"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/neighborguard/core"
)

var errNoRecipient = errors.New("sms has no recipient")

type consoleService struct {
	from          string
	disableOutput bool
}

var _ core.SMSService = (*consoleService)(nil)

// NewConsoleService prints text messages to the standard logger.
func NewConsoleService(conf *core.Config) core.SMSService {
	return &consoleService{from: conf.SMS.SenderID}
}

func (svc consoleService) SendSMS(ctx context.Context, msg core.SMSMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return errNoRecipient
	}
	if msg.From == "" {
		msg.From = svc.from
	}
	if !svc.disableOutput {
		log.Printf("SMS From: %s To: %s\n%s\n", msg.From, msg.To, msg.Body)
	}
	return nil
}

// ConsoleServiceMock keeps the text messages instead of printing them.
type ConsoleServiceMock struct {
	consoleService

	mu           sync.Mutex
	SentMessages []core.SMSMessage
	Err          error // returned by SendSMS when set
}

func NewConsoleServiceMock() *ConsoleServiceMock {
	return &ConsoleServiceMock{consoleService: consoleService{from: "NGUARD", disableOutput: true}}
}

func (svc *ConsoleServiceMock) SendSMS(ctx context.Context, msg core.SMSMessage) error {
	if svc.Err != nil {
		return svc.Err
	}
	if err := svc.consoleService.SendSMS(ctx, msg); err != nil {
		return err
	}
	svc.mu.Lock()
	svc.SentMessages = append(svc.SentMessages, msg)
	svc.mu.Unlock()
	return nil
}

func (svc *ConsoleServiceMock) Sent() []core.SMSMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.SMSMessage{}, svc.SentMessages...)
}
