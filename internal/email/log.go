package email

import (
	"context"

	"github.com/jwalitptl/repair-desk/pkg/logger"
)

// LogSender writes emails to the log instead of delivering them.
type LogSender struct {
	log *logger.Logger
}

func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, msg *Message) error {
	names := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		names = append(names, a.Filename)
	}
	s.log.Info("email (not delivered)",
		"to", msg.To,
		"subject", msg.Subject,
		"attachments", names,
	)
	return nil
}
