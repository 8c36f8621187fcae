package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

type TwilioConfig struct {
	AccountSID string `mapstructure:"account-sid"`
	// TokenFile holds the auth token; Token is used when it is empty.
	TokenFile string `mapstructure:"token-file"`
	Token     string `mapstructure:"token"`
	From      string `mapstructure:"from"`
}

type messageCreator interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// Twilio sends SMS through the Twilio REST API.
type Twilio struct {
	api    messageCreator
	from   string
	logger *zap.Logger
}

// NewTwilio expects the auth token already resolved.
func NewTwilio(cfg TwilioConfig, token string, logger *zap.Logger) (*Twilio, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" || strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("twilio account sid and token are required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("twilio sender number is required")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: token,
	})

	return newTwilio(client.Api, cfg.From, logger), nil
}

func newTwilio(api messageCreator, from string, logger *zap.Logger) *Twilio {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Twilio{api: api, from: from, logger: logger}
}

// SendSMS checks ctx before the request only; the SDK call itself is not cancellable.
func (t *Twilio) SendSMS(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.from)
	params.SetBody(body)

	t.logger.Debug("create message", zap.String("to", to))
	resp, err := t.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	if resp != nil && resp.Sid != nil {
		t.logger.Debug("message queued", zap.String("sid", *resp.Sid))
	}
	return nil
}
