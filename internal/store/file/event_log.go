package file

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

const eventLogFileName = "events.jsonl"

// EventLog appends decision and resolution events as JSON lines. Write
// failures are logged and dropped; the sink never propagates errors into the
// decision loop.
type EventLog struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewEventLog creates a JSONL event sink rooted at dataDir.
func NewEventLog(dataDir string, logger *slog.Logger) (*EventLog, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("file: create data dir: %w", err)
	}
	return &EventLog{
		path:   filepath.Join(dataDir, eventLogFileName),
		logger: logger.With(slog.String("component", "event_log")),
	}, nil
}

// Decision implements domain.EventSink.
func (l *EventLog) Decision(ev domain.DecisionEvent) {
	l.append("decision", ev)
}

// Resolution implements domain.EventSink.
func (l *EventLog) Resolution(ev domain.ResolutionEvent) {
	l.append("resolution", ev)
}

func (l *EventLog) append(kind string, payload any) {
	record := struct {
		Kind    string `json:"kind"`
		Payload any    `json:"payload"`
	}{Kind: kind, Payload: payload}

	data, err := json.Marshal(record)
	if err != nil {
		l.logger.Warn("event encode failed", slog.String("error", err.Error()))
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l.logger.Warn("event log open failed", slog.String("error", err.Error()))
		return
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		l.logger.Warn("event log write failed", slog.String("error", err.Error()))
	}
}
