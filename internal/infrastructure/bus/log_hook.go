package bus

import (
	"context"
	"time"

	marketdata "main/internal/domain/entity/marketdata"
	interfaces "main/internal/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// LogHook republishes warning-and-above log entries on the bus so external
// monitoring can see them without scraping stdout. Publishing is
// best-effort: a bus outage must never fail the log call site.
type LogHook struct {
	publisher interfaces.EventPublisher
	venue     string
	timeout   time.Duration
}

// LogLine is the bus payload for one log entry.
type LogLine struct {
	Level   string         `json:"level"`
	Module  string         `json:"module"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
	At      time.Time      `json:"at"`
}

// NewLogHook builds a hook that tags entries with the venue as source.
func NewLogHook(publisher interfaces.EventPublisher, venue string) *LogHook {
	return &LogHook{
		publisher: publisher,
		venue:     venue,
		timeout:   2 * time.Second,
	}
}

// Levels implements logrus.Hook.
func (h *LogHook) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
		logrus.WarnLevel,
	}
}

// Fire implements logrus.Hook.
func (h *LogHook) Fire(entry *logrus.Entry) error {
	line := LogLine{
		Level:   entry.Level.String(),
		Message: entry.Message,
		At:      entry.Time.UTC(),
	}
	if len(entry.Data) > 0 {
		line.Fields = make(map[string]any, len(entry.Data))
		for k, v := range entry.Data {
			if err, ok := v.(error); ok {
				line.Fields[k] = err.Error()
				continue
			}
			line.Fields[k] = v
		}
		if module, ok := line.Fields["module"].(string); ok {
			line.Module = module
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	_ = h.publisher.Publish(ctx, marketdata.LogsSubject(h.venue), line)
	return nil
}
