package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"relm/internal/models"
)

// Mailer sends transactional email over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

// Config holds SMTP connection details.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewMailer creates a new Mailer.
func NewMailer(cfg Config) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("missing SMTP host")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("missing SMTP port")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("missing SMTP from address")
	}

	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}, nil
}

// SendOTP delivers a one-time code. Each send dials a fresh SMTP connection;
// the OTP service bounds the whole attempt with a timeout and treats failure
// as log-only.
func (m *Mailer) SendOTP(email, name, code, purpose string) error {
	subject := "Verify your email • Relm"
	intro := "Use the 6-digit code below to confirm your email address."
	if purpose == models.OTPPurposeResetPassword {
		subject = "Reset your password • Relm"
		intro = "Use the 6-digit code below to reset your password."
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", otpBody(name, code, intro))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send OTP email: %w", err)
	}
	return nil
}

func otpBody(name, code, intro string) string {
	greeting := "Hi"
	if name != "" {
		greeting = "Hi " + name
	}

	return fmt.Sprintf(`
<div style="background-color:#0f172a;padding:40px 20px;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;">
  <div style="max-width:420px;margin:0 auto;background:#18181b;border-radius:16px;padding:32px;color:#ffffff;">
    <h1 style="margin:0 0 12px;font-size:22px;text-align:center;font-weight:600;">%s</h1>
    <p style="margin:0 0 24px;font-size:14px;color:#d4d4d8;text-align:center;line-height:1.5;">
      %s This code expires in <strong>10 minutes</strong>.
    </p>
    <div style="background:#020617;border:1px solid #27272a;border-radius:12px;padding:18px;text-align:center;font-size:28px;letter-spacing:6px;font-weight:700;margin-bottom:24px;">
      %s
    </div>
    <p style="font-size:12px;color:#a1a1aa;text-align:center;margin:0;">
      If you didn't request this, you can safely ignore this email.
    </p>
  </div>
</div>`, greeting, intro, code)
}
