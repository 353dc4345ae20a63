package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/therapysync/schedule-api/internal/config"
	"github.com/therapysync/schedule-api/internal/model"
	"github.com/therapysync/schedule-api/pkg/logger"
)

type Service interface {
	SendReturnToTherapist(ctx context.Context, therapist *model.Staff, visit *model.Visit, reason string) error
	SendMissedVisitNotice(ctx context.Context, mdEmail string, visit *model.Visit, record *model.MissedVisitRecord) error
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
	logger *logger.Logger
}

func NewService(cfg config.SMTPConfig, logger *logger.Logger) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

func (s *smtpService) SendReturnToTherapist(ctx context.Context, therapist *model.Staff, visit *model.Visit, reason string) error {
	body := fmt.Sprintf(
		"The visit on %s for your patient was returned for documentation changes.\n\nReason: %s\n",
		visit.VisitDate.Format("2006-01-02"), reason,
	)
	return s.send(therapist.Email, "Visit returned for documentation", body)
}

func (s *smtpService) SendMissedVisitNotice(ctx context.Context, mdEmail string, visit *model.Visit, record *model.MissedVisitRecord) error {
	body := fmt.Sprintf(
		"The visit scheduled for %s was missed.\n\nReason: %s\nAction taken: %s\nNo-show: %t\n",
		visit.VisitDate.Format("2006-01-02"), record.Reason, record.ActionTaken, record.NoShow,
	)
	return s.send(mdEmail, "Missed visit notification", body)
}

func (s *smtpService) send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// NoopService satisfies Service for deployments without SMTP configured.
type NoopService struct{}

func (NoopService) SendReturnToTherapist(ctx context.Context, therapist *model.Staff, visit *model.Visit, reason string) error {
	return nil
}

func (NoopService) SendMissedVisitNotice(ctx context.Context, mdEmail string, visit *model.Visit, record *model.MissedVisitRecord) error {
	return nil
}
