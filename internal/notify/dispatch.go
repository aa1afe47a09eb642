package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/jonathan/talent-sourcer/internal/logging"
)

// Dispatcher delivers messages.
type Dispatcher interface {
	Send(ctx context.Context, msg *Message) error
}

// LogDispatcher writes messages to the log instead of sending them.
type LogDispatcher struct {
	logger *zap.Logger
}

// NewLogDispatcher creates a LogDispatcher.
func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logging.WithFields(logger)}
}

// Send logs the message.
func (d *LogDispatcher) Send(_ context.Context, msg *Message) error {
	d.logger.Info("notification sent",
		zap.String("kind", msg.Kind),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		logging.CandidateID(msg.CandidateID),
		zap.String("body_preview", logging.TruncateForLog(msg.Body, 200)))
	return nil
}

// Outbox records messages in memory. It backs tests and dry runs.
type Outbox struct {
	// Err, when set, is returned by Send and nothing is recorded.
	Err error

	mu   sync.Mutex
	sent []*Message
}

// Send records msg.
func (o *Outbox) Send(_ context.Context, msg *Message) error {
	if o.Err != nil {
		return &DeliveryError{To: msg.To, Cause: o.Err}
	}
	o.mu.Lock()
	o.sent = append(o.sent, msg)
	o.mu.Unlock()
	return nil
}

// Sent returns the recorded messages.
func (o *Outbox) Sent() []*Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Message(nil), o.sent...)
}
