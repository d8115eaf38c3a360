package smssvc

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/neighborguard/core"
)

type (
	gatewayRequest struct {
		To      string `json:"to"`
		Message string `json:"message"`
		From    string `json:"from,omitempty"`
	}

	gatewayResponse struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Error  string `json:"error"`
	}
)

// gatewayService posts text messages to an HTTP SMS gateway.
type gatewayService struct {
	client *resty.Client
	from   string
}

var _ core.SMSService = (*gatewayService)(nil)

func NewGatewayService(conf *core.Config) core.SMSService {
	client := resty.New().
		SetBaseURL(conf.SMS.GatewayURL).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetAuthToken(conf.SMS.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &gatewayService{client: client, from: conf.SMS.SenderID}
}

func (svc gatewayService) SendSMS(ctx context.Context, msg core.SMSMessage) error {
	if msg.To == "" {
		return errNoRecipient
	}
	from := msg.From
	if from == "" {
		from = svc.from
	}

	var result gatewayResponse
	resp, err := svc.client.R().
		SetContext(ctx).
		SetBody(gatewayRequest{To: msg.To, Message: msg.Body, From: from}).
		SetResult(&result).
		SetError(&result).
		Post("/messages")
	if err != nil {
		return errors.Wrap(err, "calling sms gateway")
	}
	if resp.IsError() {
		return errors.Errorf("sms gateway - status: %d - error: %s", resp.StatusCode(), result.Error)
	}
	return nil
}
