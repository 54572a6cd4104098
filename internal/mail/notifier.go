// Package mail delivers account notifications. The core never waits on a
// send: messages go through a Dispatcher that runs each delivery as a
// detached background task.
package mail

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Message is one outbound HTML mail.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Notifier delivers a single message.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

var ErrClosed = errors.New("notifier closed")

// LogNotifier writes messages to the log instead of sending them. Used
// when no SMTP server is configured.
type LogNotifier struct {
	logger *zap.SugaredLogger
}

func NewLogNotifier(logger *zap.SugaredLogger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	n.logger.Infow("mail notification",
		"to", msg.To,
		"subject", msg.Subject,
		"html", msg.HTML,
	)
	return nil
}
