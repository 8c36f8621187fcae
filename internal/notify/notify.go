package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/talent"
)

const subject = "New job match found"

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Delivery records what reached a single candidate.
type Delivery struct {
	CandidateID string   `json:"candidate_id"`
	Email       bool     `json:"email"`
	SMS         bool     `json:"sms"`
	Errors      []string `json:"errors,omitempty"`
}

// Service sends match notifications over every configured channel.
// A nil sender disables its channel.
type Service struct {
	email  EmailSender
	sms    SMSSender
	logger *zap.Logger
}

func New(email EmailSender, sms SMSSender, log *zap.Logger) *Service {
	return &Service{email: email, sms: sms, logger: logger.WithFields(log)}
}

// Notify never fails: channel errors are recorded in the returned Delivery.
func (s *Service) Notify(ctx context.Context, email, phone string, result *talent.MatchResult) Delivery {
	d := Delivery{CandidateID: result.CandidateID}
	log := s.logger.With(logger.Candidate(result.CandidateID))

	if email = strings.TrimSpace(email); email != "" && s.email != nil {
		if err := s.email.SendEmail(ctx, email, subject, EmailBody(result)); err != nil {
			log.Warn("email notification failed", zap.Error(err))
			d.Errors = append(d.Errors, fmt.Sprintf("email: %v", err))
		} else {
			d.Email = true
		}
	}

	if phone = strings.TrimSpace(phone); phone != "" && s.sms != nil {
		if err := s.sms.SendSMS(ctx, phone, SMSBody(result)); err != nil {
			log.Warn("sms notification failed", zap.Error(err))
			d.Errors = append(d.Errors, fmt.Sprintf("sms: %v", err))
		} else {
			d.SMS = true
		}
	}

	return d
}

// NotifyBatch notifies every ranked candidate of batch once. Candidates missing
// from contacts are reported as failed deliveries.
func (s *Service) NotifyBatch(ctx context.Context, batch *talent.Batch, contacts map[string]talent.CandidateRecord) []Delivery {
	out := make([]Delivery, 0, len(batch.Results))
	for i := range batch.Results {
		r := &batch.Results[i]
		if ctx.Err() != nil {
			out = append(out, Delivery{CandidateID: r.CandidateID, Errors: []string{ctx.Err().Error()}})
			continue
		}

		c, ok := contacts[r.CandidateID]
		if !ok {
			out = append(out, Delivery{CandidateID: r.CandidateID, Errors: []string{"no contact details"}})
			continue
		}
		out = append(out, s.Notify(ctx, c.Email, c.Phone, r))
	}
	return out
}

func EmailBody(r *talent.MatchResult) string {
	missing := "None"
	if skills := r.MissingSkills(); len(skills) > 0 {
		missing = html.EscapeString(strings.Join(skills, ", "))
	}

	var b strings.Builder
	b.WriteString("<h2>New job match found!</h2>\n")
	b.WriteString("<p>We found a job that fits your profile:</p>\n<ul>\n")
	fmt.Fprintf(&b, "  <li>Match percentage: %.1f%%</li>\n", r.MatchPercentage)
	fmt.Fprintf(&b, "  <li>Missing skills: %s</li>\n", missing)
	b.WriteString("</ul>\n")
	if r.Explanation != "" {
		fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(r.Explanation))
	}
	b.WriteString("<p>Please sign in to see the details.</p>\n")
	return b.String()
}

func SMSBody(r *talent.MatchResult) string {
	return fmt.Sprintf("New job match found! Match percentage: %.1f%%. Sign in for details.", r.MatchPercentage)
}
