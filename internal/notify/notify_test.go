package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	twilioclient "github.com/twilio/twilio-go/client"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/cv-matcher/internal/talent"
)

type sent struct {
	to, subject, body string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeSender) SendEmail(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{to: to, subject: subject, body: body})
	return nil
}

func (f *fakeSender) SendSMS(_ context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{to: to, body: body})
	return nil
}

func result() *talent.MatchResult {
	return &talent.MatchResult{
		CandidateID:      "c1",
		MatchPercentage:  82.5,
		MissingRequired:  []string{"go"},
		MissingPreferred: []string{"k8s"},
	}
}

func TestNotifyChannels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		email     string
		phone     string
		smsOff    bool
		wantEmail bool
		wantSMS   bool
	}{
		{name: "both", email: "a@b.io", phone: "+15550001111", wantEmail: true, wantSMS: true},
		{name: "email only", email: "a@b.io", wantEmail: true},
		{name: "blank email", email: "  ", phone: "+15550001111", wantSMS: true},
		{name: "sms not configured", email: "a@b.io", phone: "+15550001111", smsOff: true, wantEmail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mail := &fakeSender{}
			var sms SMSSender
			text := &fakeSender{}
			if !tt.smsOff {
				sms = text
			}

			d := New(mail, sms, zap.NewNop()).Notify(context.Background(), tt.email, tt.phone, result())
			if d.Email != tt.wantEmail || d.SMS != tt.wantSMS {
				t.Fatalf("unexpected delivery: %+v", d)
			}
			if len(d.Errors) != 0 {
				t.Fatalf("unexpected errors: %v", d.Errors)
			}
			if tt.wantEmail && mail.sent[0].subject != subject {
				t.Fatalf("unexpected subject %q", mail.sent[0].subject)
			}
			if tt.wantSMS && !strings.Contains(text.sent[0].body, "82.5%") {
				t.Fatalf("sms should carry the percentage: %q", text.sent[0].body)
			}
		})
	}
}

func TestNotifyRecordsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	failing := &fakeSender{err: errors.New("relay down")}

	d := New(failing, failing, zap.New(core)).Notify(context.Background(), "a@b.io", "+15550001111", result())
	if d.Email || d.SMS {
		t.Fatalf("nothing should be delivered: %+v", d)
	}
	if len(d.Errors) != 2 {
		t.Fatalf("expected two errors, got %v", d.Errors)
	}
	if logs.FilterMessage("email notification failed").Len() != 1 || logs.FilterMessage("sms notification failed").Len() != 1 {
		t.Fatalf("expected failures to be logged, got %v", logs.All())
	}
}

func TestNotifyBatch(t *testing.T) {
	mail := &fakeSender{}
	batch := &talent.Batch{Results: []talent.MatchResult{
		{CandidateID: "c1", MatchPercentage: 90},
		{CandidateID: "ghost", MatchPercentage: 80},
	}}
	contacts := map[string]talent.CandidateRecord{"c1": {ID: "c1", Email: "c1@x.io"}}

	out := New(mail, nil, nil).NotifyBatch(context.Background(), batch, contacts)
	if len(out) != 2 {
		t.Fatalf("expected a delivery per result, got %d", len(out))
	}
	if !out[0].Email || out[0].CandidateID != "c1" {
		t.Fatalf("unexpected first delivery: %+v", out[0])
	}
	if out[1].Email || len(out[1].Errors) != 1 {
		t.Fatalf("unexpected second delivery: %+v", out[1])
	}
}

func TestEmailBodyEscapesAndListsMissing(t *testing.T) {
	r := result()
	r.Explanation = "<b>strong</b>"

	body := EmailBody(r)
	for _, want := range []string{"82.5%", "go, k8s", "&lt;b&gt;strong&lt;/b&gt;"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}

	r.MissingRequired, r.MissingPreferred = nil, nil
	if !strings.Contains(EmailBody(r), "Missing skills: None") {
		t.Fatal("expected None for no missing skills")
	}
}

type fakeMailClient struct {
	msgs []*mail.Msg
	err  error
}

func (f *fakeMailClient) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	f.msgs = append(f.msgs, messages...)
	return f.err
}

func TestSMTPSendEmail(t *testing.T) {
	s, err := NewSMTP(SMTPConfig{Host: "mail.local", Username: "bot@x.io"}, "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	client := &fakeMailClient{}
	s.client = client

	if err := s.SendEmail(context.Background(), "c@x.io", "hi", "<p>x</p>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(client.msgs))
	}

	var buf bytes.Buffer
	if _, err := client.msgs[0].WriteTo(&buf); err != nil {
		t.Fatalf("render message: %v", err)
	}
	raw := buf.String()
	for _, want := range []string{"bot@x.io", "c@x.io", "Subject: hi", "text/html"} {
		if !strings.Contains(raw, want) {
			t.Fatalf("expected %q in message:\n%s", want, raw)
		}
	}
}

func TestSMTPSendEmailErrors(t *testing.T) {
	tests := []struct {
		name      string
		to        string
		clientErr error
		wantSent  int
	}{
		{name: "invalid recipient", to: "not an address"},
		{name: "relay failure", to: "c@x.io", clientErr: errors.New("connection refused"), wantSent: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSMTP(SMTPConfig{Host: "mail.local", From: "bot@x.io"}, "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			client := &fakeMailClient{err: tt.clientErr}
			s.client = client

			if err := s.SendEmail(context.Background(), tt.to, "hi", "<p>x</p>"); err == nil {
				t.Fatal("expected error")
			}
			if len(client.msgs) != tt.wantSent {
				t.Fatalf("expected %d dialled messages, got %d", tt.wantSent, len(client.msgs))
			}
		})
	}
}

func TestNewSMTPValidation(t *testing.T) {
	if _, err := NewSMTP(SMTPConfig{}, ""); err == nil {
		t.Fatal("expected error without host")
	}
	if _, err := NewSMTP(SMTPConfig{Host: "mail.local"}, ""); err == nil {
		t.Fatal("expected error without sender")
	}
}

type fakeMessages struct {
	params []*twilioapi.CreateMessageParams
	err    error
}

func (f *fakeMessages) CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM1"
	return &twilioapi.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioSendSMS(t *testing.T) {
	if _, err := NewTwilio(TwilioConfig{AccountSID: "AC1", From: "+15550000000"}, "tok", zap.NewNop()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	api := &fakeMessages{}
	tw := newTwilio(api, "+15550000000", zap.NewNop())

	if err := tw.SendSMS(context.Background(), "+15551112222", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.params) != 1 {
		t.Fatalf("expected one message, got %d", len(api.params))
	}
	p := api.params[0]
	if *p.To != "+15551112222" || *p.From != "+15550000000" || *p.Body != "hello" {
		t.Fatalf("unexpected params: to=%s from=%s body=%s", *p.To, *p.From, *p.Body)
	}
}

func TestTwilioSendSMSErrors(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		api := &fakeMessages{err: &twilioclient.TwilioRestError{Code: 21211, Message: "invalid To number", Status: 400}}
		tw := newTwilio(api, "+1", nil)

		err := tw.SendSMS(context.Background(), "bad", "hello")
		var restErr *twilioclient.TwilioRestError
		if !errors.As(err, &restErr) || restErr.Code != 21211 {
			t.Fatalf("expected twilio rest error, got %v", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		api := &fakeMessages{}
		tw := newTwilio(api, "+1", nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := tw.SendSMS(ctx, "+15551112222", "hello"); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if len(api.params) != 0 {
			t.Fatal("cancelled send must not reach the api")
		}
	})
}

func TestNewTwilioValidation(t *testing.T) {
	if _, err := NewTwilio(TwilioConfig{From: "+1"}, "tok", nil); err == nil {
		t.Fatal("expected error without account sid")
	}
	if _, err := NewTwilio(TwilioConfig{AccountSID: "AC1"}, "tok", nil); err == nil {
		t.Fatal("expected error without sender")
	}
}
