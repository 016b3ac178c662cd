package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/juju/errors"
)

const (
	smtpDialTimeout = 8 * time.Second
	smtpIOTimeout   = 15 * time.Second
)

type MailConfig struct {
	SMTPAddr    string
	Username    string
	AppPassword string
	From        string
	FromName    string
}

// MailService delivers HTML mail over SMTP with STARTTLS.
type MailService struct {
	cfg  MailConfig
	host string
}

func NewMailService(cfg MailConfig) (*MailService, error) {
	if cfg.SMTPAddr == "" {
		cfg.SMTPAddr = "smtp.gmail.com:587"
	}
	host, _, err := net.SplitHostPort(cfg.SMTPAddr)
	if err != nil {
		return nil, errors.NewNotValid(err, fmt.Sprintf("invalid SMTP address %q", cfg.SMTPAddr))
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &MailService{cfg: cfg, host: host}, nil
}

// Send delivers one message to every recipient in a single SMTP session.
// Recipients are not disclosed to each other.
func (s *MailService) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	if len(to) == 0 {
		return nil
	}
	if s.cfg.From == "" {
		return errors.NotProvisionedf("mail sender")
	}

	msg := s.compose(subject, htmlBody)
	logger.Debugf("smtp sending %q to %d recipients via %s", subject, len(to), s.cfg.SMTPAddr)
	if err := s.deliver(ctx, to, msg); err != nil {
		return errors.Annotatef(err, "send %q", subject)
	}
	logger.Infof("sent %q to %d recipients", subject, len(to))
	return nil
}

func (s *MailService) compose(subject, htmlBody string) []byte {
	from := s.cfg.From
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.cfg.FromName), s.cfg.From)
	}
	return []byte(strings.Join([]string{
		"From: " + from,
		"To: undisclosed-recipients:;",
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"Date: " + time.Now().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		htmlBody,
	}, "\r\n"))
}

func (s *MailService) deliver(ctx context.Context, to []string, msg []byte) error {
	dialer := net.Dialer{Timeout: smtpDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.cfg.SMTPAddr)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(smtpIOTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = c.Quit() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return err
		}
	}
	if s.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.AppPassword, s.host)); err != nil {
			return err
		}
	}

	if err := c.Mail(s.cfg.From); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return errors.Annotatef(err, "recipient %s", rcpt)
		}
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
