package email

import "context"

type Provider interface {
	Send(ctx context.Context, to []string, subject, htmlBody string) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	return nil
}
