// Package mailer turns notification events into email.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/fundraiseer/apiserver/config"
	"github.com/fundraiseer/apiserver/internal/logger"
	"github.com/fundraiseer/apiserver/internal/mq"
	"github.com/fundraiseer/apiserver/types"
	"github.com/sirupsen/logrus"
)

// Sender delivers one rendered email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type mailTemplate struct {
	subject string
	body    *template.Template
}

var templates = map[string]mailTemplate{
	types.NotificationPasswordResetOTP: {
		subject: "Your password reset code",
		body: template.Must(template.New("otp").Parse(`Hi {{.Name}},

Use the code {{index .Data "otp"}} to reset your password. It expires in {{index .Data "expiresIn"}}.

If you did not ask for a reset you can ignore this email.
`)),
	},
	types.NotificationRoleChanged: {
		subject: "Your account role has changed",
		body: template.Must(template.New("role").Parse(`Hi {{.Name}},

An administrator changed your role to "{{index .Data "role"}}".
For security you must reset your password before signing in again.
`)),
	},
	types.NotificationDonationReceived: {
		subject: "Thank you for your donation",
		body: template.Must(template.New("donation").Parse(`Hi {{.Name}},

We received your donation of {{index .Data "amount"}} to "{{index .Data "campaignTitle"}}". Thank you!
`)),
	},
	types.NotificationContactReceived: {
		subject: "We received your message",
		body: template.Must(template.New("contact").Parse(`Hi {{.Name}},

Thanks for reaching out about "{{index .Data "subject"}}". Our team will get back to you soon.
`)),
	},
	types.NotificationContactResponded: {
		subject: "Re: your message",
		body: template.Must(template.New("response").Parse(`Hi {{.Name}},

Regarding "{{index .Data "subject"}}":

{{index .Data "response"}}

Status: {{index .Data "status"}}
`)),
	},
}

// Render produces the subject and plain text body for n.
func Render(n types.Notification) (string, string, error) {
	tmpl, ok := templates[n.Type]
	if !ok {
		return "", "", fmt.Errorf("no template for notification %q", n.Type)
	}
	var buf bytes.Buffer
	if err := tmpl.body.Execute(&buf, n); err != nil {
		return "", "", fmt.Errorf("render %s: %w", n.Type, err)
	}
	return tmpl.subject, buf.String(), nil
}

// Consumer renders notifications from the queue and hands them to a Sender.
type Consumer struct {
	sender Sender
}

func NewConsumer(sender Sender) *Consumer {
	return &Consumer{sender: sender}
}

// Handle is an mq.Handler. Malformed and unknown messages are dropped;
// delivery failures are returned so the broker redelivers.
func (c *Consumer) Handle(ctx context.Context, msg mq.Message) error {
	rlog := logger.FromContext(ctx).WithField("messageID", msg.ID)

	n, err := mq.DecodeNotification(msg)
	if err != nil {
		rlog.WithError(err).Warn("dropping malformed notification")
		return nil
	}
	rlog = rlog.WithFields(logrus.Fields{"notification": n.Type, "to": n.To})

	subject, body, err := Render(n)
	if err != nil {
		rlog.WithError(err).Warn("dropping notification")
		return nil
	}
	if err := c.sender.Send(ctx, n.To, subject, body); err != nil {
		rlog.WithError(err).Error("send email failed")
		return err
	}
	rlog.Info("email sent")
	return nil
}

// SMTPSender sends plain text mail. Port 465 uses implicit TLS, other ports
// let net/smtp negotiate STARTTLS.
type SMTPSender struct {
	cfg config.SMTPConfig
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(_ context.Context, to, subject, body string) error {
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	raw := buildMessage(s.from(), to, subject, body, time.Now())

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if s.cfg.Port == 465 {
		return s.sendTLS(addr, auth, to, raw)
	}
	return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, raw)
}

func (s *SMTPSender) sendTLS(addr string, auth smtp.Auth, to string, raw []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.cfg.Host})
	if err != nil {
		return fmt.Errorf("tls dial: %w", err)
	}
	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func (s *SMTPSender) from() string {
	if s.cfg.FromName == "" {
		return s.cfg.From
	}
	return fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.From)
}

func buildMessage(from, to, subject, body string, date time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Date: " + date.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}
