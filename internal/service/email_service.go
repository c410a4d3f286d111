package service

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/mediaflow/api/internal/client"
)

// EmailService renders account emails. A nil mailer skips delivery.
type EmailService struct {
	mailer      client.Mailer
	frontendURL string
}

func NewEmailService(mailer client.Mailer, frontendURL string) *EmailService {
	return &EmailService{
		mailer:      mailer,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// SendWelcome greets a newly registered user.
func (s *EmailService) SendWelcome(ctx context.Context, email, username string) error {
	if s.mailer == nil {
		log.Printf("Info: mail not configured, skipping welcome email to %s", email)
		return nil
	}

	body := fmt.Sprintf("Hi %s,\n\nWelcome to MediaFlow! Your account is ready.\n\nThe MediaFlow Team\n", username)
	if err := s.mailer.Send(ctx, &client.MailMessage{
		To:      []string{email},
		Subject: "Welcome to MediaFlow",
		Body:    body,
	}); err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}
	return nil
}

// SendPasswordReset mails a link carrying token to the account owner.
func (s *EmailService) SendPasswordReset(ctx context.Context, email, token string) error {
	if s.mailer == nil {
		log.Printf("Info: mail not configured, skipping password reset email to %s", email)
		return nil
	}

	link := s.frontendURL + "/reset-password?token=" + url.QueryEscape(token)
	body := fmt.Sprintf("A password reset was requested for your account.\n\n"+
		"Open the link below to choose a new password:\n%s\n\n"+
		"If you did not request this, ignore this email.\n", link)
	if err := s.mailer.Send(ctx, &client.MailMessage{
		To:      []string{email},
		Subject: "Reset your MediaFlow password",
		Body:    body,
	}); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	return nil
}
