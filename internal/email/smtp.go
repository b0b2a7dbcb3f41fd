package email

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/time/rate"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/repair-desk/pkg/circuitbreaker"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	RatePerSecond float64
	Burst         int
}

// SMTPSender sends through an SMTP relay, throttled by a token bucket and
// guarded by a circuit breaker.
type SMTPSender struct {
	from    string
	dialer  dialer
	limiter *rate.Limiter
	cb      *circuitbreaker.CircuitBreaker
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return newSMTPSender(cfg, gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password))
}

func newSMTPSender(cfg SMTPConfig, d dialer) *SMTPSender {
	limit := rate.Limit(cfg.RatePerSecond)
	if cfg.RatePerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &SMTPSender{
		from:    cfg.From,
		dialer:  d,
		limiter: rate.NewLimiter(limit, burst),
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "smtp",
			MaxFailures: 5,
		}),
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("email has no recipients")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("email rate limit: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	for _, a := range msg.Attachments {
		data := a.Data
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		}
		if a.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}))
		}
		m.Attach(a.Filename, settings...)
	}

	return s.cb.Execute(func() error {
		if err := s.dialer.DialAndSend(m); err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	})
}
