package pipeline

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/lender-enrich/internal/model"
)

// Reporter receives batch events and progress updates.
type Reporter interface {
	Event(model.Event)
	Progress(model.Progress)
}

// LogReporter writes events and progress to the global zap logger.
type LogReporter struct{}

// Event logs ev at a level matching its severity.
func (LogReporter) Event(ev model.Event) {
	fields := []zap.Field{zap.String("record", ev.RecordID)}
	switch ev.Severity {
	case model.SeverityError:
		zap.L().Error(ev.Message, fields...)
	case model.SeverityWarning:
		zap.L().Warn(ev.Message, fields...)
	default:
		zap.L().Info(ev.Message, fields...)
	}
}

// Progress logs p at debug level.
func (LogReporter) Progress(p model.Progress) {
	zap.L().Debug("pipeline: progress",
		zap.String("phase", p.Phase),
		zap.Int("done", p.Done),
		zap.Int("total", p.Total),
		zap.Int("percent", p.Percent),
	)
}

// MultiReporter fans out to every non-nil reporter.
type MultiReporter []Reporter

// Event forwards ev to every reporter in order.
func (m MultiReporter) Event(ev model.Event) {
	for _, r := range m {
		if r != nil {
			r.Event(ev)
		}
	}
}

// Progress forwards p to every reporter in order.
func (m MultiReporter) Progress(p model.Progress) {
	for _, r := range m {
		if r != nil {
			r.Progress(p)
		}
	}
}

// NopReporter discards everything.
type NopReporter struct{}

// Event discards the event.
func (NopReporter) Event(model.Event) {}

// Progress discards the update.
func (NopReporter) Progress(model.Progress) {}

func newEvent(recordID string, sev model.Severity, msg string) model.Event {
	return model.Event{
		ID:        uuid.NewString(),
		RecordID:  recordID,
		Message:   msg,
		Severity:  sev,
		Timestamp: time.Now().UTC(),
	}
}

// NewEvent builds an event stamped with a fresh id and the current time.
func NewEvent(recordID string, sev model.Severity, msg string) model.Event {
	return newEvent(recordID, sev, msg)
}
