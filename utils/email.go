package utils

import (
	"fmt"
	"net/smtp"
	"os"

	"github.com/sony/gobreaker"
)

// SMTPMailer sends templated account and invitation email over plain SMTP.
// Sends run through a circuit breaker so a dead mail relay cannot stall
// registration.
type SMTPMailer struct {
	host     string
	port     string
	from     string
	password string
	breaker  *gobreaker.CircuitBreaker
}

func NewSMTPMailer(breaker *gobreaker.CircuitBreaker) *SMTPMailer {
	return &SMTPMailer{
		host:     os.Getenv("SMTP_HOST"),
		port:     os.Getenv("SMTP_PORT"),
		from:     os.Getenv("EMAIL_USER"),
		password: os.Getenv("EMAIL_PASSWORD"),
		breaker:  breaker,
	}
}

func (m *SMTPMailer) send(to, subject, body string) error {
	if m.password == "" {
		return fmt.Errorf("EMAIL_PASSWORD is not set")
	}

	message := []byte("Subject: " + subject + "\r\n" +
		"From: " + m.from + "\r\n" +
		"To: " + to + "\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n" +
		body + "\r\n")

	auth := smtp.PlainAuth("", m.from, m.password, m.host)

	_, err := m.breaker.Execute(func() (interface{}, error) {
		return nil, smtp.SendMail(m.host+":"+m.port, auth, m.from, []string{to}, message)
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}
	return nil
}

func (m *SMTPMailer) SendOTP(to, username, otp string) error {
	subject := "Verify your FocusFlow account"
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; max-width: 480px; margin: 0 auto;">
			<h2>Hi %s,</h2>
			<p>Welcome to FocusFlow! Use the code below to verify your account:</p>
			<p style="font-size: 28px; font-weight: bold; letter-spacing: 6px;">%s</p>
			<p>If you did not create an account, you can ignore this email.</p>
		</div>`, username, otp)
	return m.send(to, subject, body)
}

func (m *SMTPMailer) SendInvitation(to, taskTitle, joinLink string) error {
	subject := fmt.Sprintf("You have been invited to join %s", taskTitle)
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; max-width: 480px; margin: 0 auto;">
			<h2>Task invitation</h2>
			<p>You have been invited to collaborate on <strong>%s</strong>.</p>
			<p><a href="%s" style="display: inline-block; padding: 10px 20px; background-color: #4f46e5; color: #ffffff; text-decoration: none; border-radius: 6px;">Join task</a></p>
			<p>Or open this link: %s</p>
		</div>`, taskTitle, joinLink, joinLink)
	return m.send(to, subject, body)
}
