package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/johnquangdev/meeting-colleague/pkg/config"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailSender delivers messages over SMTP
type EmailSender struct {
	host     string
	port     int
	user     string
	password string
	from     string
	sendMail sendMailFunc
	now      func() time.Time
}

// NewEmailSender creates an SMTP sender. It is configured when a host is set.
func NewEmailSender(cfg *config.NotifyConfig) *EmailSender {
	s := &EmailSender{
		sendMail: smtp.SendMail,
		now:      time.Now,
	}
	if cfg != nil {
		s.host = cfg.SMTPHost
		s.port = cfg.SMTPPort
		s.user = cfg.SMTPUser
		s.password = cfg.SMTPPassword
		s.from = cfg.SMTPFrom
	}
	if s.port == 0 {
		s.port = 587
	}
	return s
}

func (s *EmailSender) Channel() Channel { return ChannelEmail }

func (s *EmailSender) Configured() bool { return s.host != "" && s.from != "" }

func (s *EmailSender) Send(_ context.Context, msg Message) error {
	to := msg.Recipients()
	if len(to) == 0 {
		return errors.New("email: no recipients")
	}

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.password, s.host)
	}

	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	if err := s.sendMail(addr, auth, s.from, to, s.render(to, msg)); err != nil {
		return fmt.Errorf("email to %s: %w", strings.Join(to, ","), err)
	}
	return nil
}

func (s *EmailSender) render(to []string, msg Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return b.Bytes()
}
