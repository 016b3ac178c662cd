package interfaces

import "context"

type MailSender interface {
	Send(ctx context.Context, to []string, subject, htmlBody string) error
}
