package utils

import (
	"fmt"
	"os"
	"strconv"

	"oss-compliance-backend/config"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Initialize the SMTP mailer once and store it in a global variable
var mailer *gomail.Dialer

// InitializeMailer sets up the mailer using environment variables
func InitializeMailer() {
	mailHost := os.Getenv("SMTP_HOST")
	mailPort := os.Getenv("SMTP_PORT")
	mailUser := os.Getenv("SMTP_USER")
	mailPassword := os.Getenv("SMTP_PASSWORD")

	port, err := strconv.Atoi(mailPort)
	if err != nil {
		config.Logger.Error("Invalid SMTP_PORT value, defaulting to port 25",
			zap.String("provided_port", mailPort),
			zap.Error(err),
		)
		port = 25
	}

	mailer = gomail.NewDialer(mailHost, port, mailUser, mailPassword)
	config.Logger.Info("Mailer initialized successfully")
}

// GetMailer returns the initialized mailer
func GetMailer() *gomail.Dialer {
	return mailer
}

// SendReportEmail sends the generated OSS report as an attachment.
func SendReportEmail(email string, fileName string, attachmentPath string) error {
	body := fmt.Sprintf(`
		<html>
			<body>
				<p>Your OSS compliance report is ready.</p>
				<p>The report <strong>%s</strong> is attached to this email.</p>
				<p>Keep it with your records for the current reporting quarter.</p>
			</body>
		</html>
	`, fileName)

	return sendMail(email, "Your OSS compliance report", body, attachmentPath)
}

// SendManualReviewEmail tells the customer a human will finish their report.
func SendManualReviewEmail(email string) error {
	body := `
		<html>
			<body>
				<p>Your filing needs a manual review before the report can be generated.</p>
				<p>Our compliance team has been notified and will contact you at this address once the review is complete. No further action is needed from you.</p>
			</body>
		</html>
	`

	return sendMail(email, "Your OSS filing is in manual review", body, "")
}

func sendMail(email, subject, htmlBody, attachmentPath string) error {
	if mailer == nil {
		err := fmt.Errorf("mailer is not initialized")
		config.Logger.Error("Email send failed: mailer is not initialized",
			zap.String("to_email", email),
			zap.String("subject", subject),
			zap.Error(err),
		)
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", os.Getenv("SMTP_FROM"))
	m.SetHeader("To", email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if attachmentPath != "" {
		if _, err := os.Stat(attachmentPath); err == nil {
			m.Attach(attachmentPath)
			config.Logger.Debug("Attaching file to email", zap.String("filepath", attachmentPath))
		} else {
			config.Logger.Warn("Attachment file not found for email",
				zap.String("filepath", attachmentPath),
				zap.String("to_email", email),
				zap.Error(err),
			)
			return fmt.Errorf("report attachment missing: %w", err)
		}
	}

	if err := mailer.DialAndSend(m); err != nil {
		config.Logger.Error("Failed to send email via SMTP",
			zap.String("to_email", email),
			zap.String("subject", subject),
			zap.Bool("has_attachment", attachmentPath != ""),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	config.Logger.Info("Email sent successfully",
		zap.String("to_email", email),
		zap.String("subject", subject),
	)
	return nil
}
