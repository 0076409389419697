package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// AWSSESEmailService sends verification and reset emails via AWS SES.
// Satisfies both VerificationNotifier and ResetNotifier.
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

func NewAWSSESEmailService(region, fromAddress, baseURL string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}, nil
}

// SendVerificationEmail sends the email verification link.
func (s *AWSSESEmailService) SendVerificationEmail(ctx context.Context, email, token string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", s.baseURL, token)

	htmlBody := fmt.Sprintf(`<html><body>
<h1>Verify your email address</h1>
<p>Thank you for creating an account. Click the link below to verify your email address:</p>
<p><a href="%s">Verify Email Address</a></p>
<p>Or copy and paste this link in your browser:<br><code>%s</code></p>
<p>If you didn't sign up for this account, you can ignore this email.</p>
</body></html>`, link, link)

	textBody := fmt.Sprintf(`Verify your email address

Thank you for creating an account. Open the link below to verify your email address:

%s

If you didn't sign up for this account, you can ignore this email.
`, link)

	return s.send(ctx, email, "Verify your email address", htmlBody, textBody)
}

// SendPasswordResetEmail sends the password reset link.
func (s *AWSSESEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, token)
	expiresIn := time.Until(expiresAt).Round(time.Minute)

	htmlBody := fmt.Sprintf(`<html><body>
<h1>Reset your password</h1>
<p>We received a request to reset your password. Click the link below to choose a new one:</p>
<p><a href="%s">Reset Password</a></p>
<p>Or copy and paste this link in your browser:<br><code>%s</code></p>
<p>This link expires in %s.</p>
<p>If you didn't request a password reset, you can ignore this email. Your password will not change.</p>
</body></html>`, link, link, expiresIn)

	textBody := fmt.Sprintf(`Reset your password

We received a request to reset your password. Open the link below to choose a new one:

%s

This link expires in %s.

If you didn't request a password reset, you can ignore this email. Your password will not change.
`, link, expiresIn)

	return s.send(ctx, email, "Reset your password", htmlBody, textBody)
}

func (s *AWSSESEmailService) send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	if _, err := s.sesClient.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email via SES: %w", err)
	}

	s.logger.Info("email dispatched", slog.String("subject", subject))
	return nil
}
