package domain

import (
	"time"
)

type EventType string

const (
	RunStarted     EventType = "RunStarted"
	EntryProcessed EventType = "EntryProcessed"
	RunCompleted   EventType = "RunCompleted"
	RunFailed      EventType = "RunFailed"

	NotificationSent   EventType = "NotificationSent"
	NotificationFailed EventType = "NotificationFailed"
)

// AggregateRun is the aggregate type of every pipeline event.
const AggregateRun = "run"

type Event struct {
	ID            int64                  `json:"id"`
	AggregateType string                 `json:"aggregate_type"`
	AggregateID   string                 `json:"aggregate_id"`
	EventType     EventType              `json:"event_type"`
	EventData     map[string]interface{} `json:"event_data"`
	EventVersion  int                    `json:"event_version"`
	CreatedAt     time.Time              `json:"created_at"`
}

// NewRunEvent builds an event for the run identified by runID.
func NewRunEvent(eventType EventType, runID string, data map[string]interface{}) Event {
	if data == nil {
		data = map[string]interface{}{}
	}
	return Event{
		AggregateType: AggregateRun,
		AggregateID:   runID,
		EventType:     eventType,
		EventData:     data,
		EventVersion:  1,
	}
}

// =============================================================================
// Type-safe event data accessors
// =============================================================================

// GetString returns the value and true if key holds a string.
func (e *Event) GetString(key string) (string, bool) {
	if e.EventData == nil {
		return "", false
	}
	v, ok := e.EventData[key].(string)
	return v, ok
}

func (e *Event) GetStringOr(key, defaultVal string) string {
	if v, ok := e.GetString(key); ok {
		return v
	}
	return defaultVal
}

// GetInt64 accepts int, int64 and float64 (JSON round trips produce float64).
func (e *Event) GetInt64(key string) (int64, bool) {
	if e.EventData == nil {
		return 0, false
	}
	switch v := e.EventData[key].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

func (e *Event) GetInt64Or(key string, defaultVal int64) int64 {
	if v, ok := e.GetInt64(key); ok {
		return v
	}
	return defaultVal
}

func (e *Event) GetFloat64(key string) (float64, bool) {
	if e.EventData == nil {
		return 0, false
	}
	switch v := e.EventData[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func (e *Event) GetBool(key string) (bool, bool) {
	if e.EventData == nil {
		return false, false
	}
	v, ok := e.EventData[key].(bool)
	return v, ok
}

func (e *Event) GetBoolOr(key string, defaultVal bool) bool {
	if v, ok := e.GetBool(key); ok {
		return v
	}
	return defaultVal
}

// =============================================================================
// Typed event payloads
// =============================================================================

// EntryProcessedData is the payload of EntryProcessed.
type EntryProcessedData struct {
	Title    string
	InfoHash string
	Added    bool
	Error    string
}

// EntryProcessedEvent builds an EntryProcessed event from a record.
func EntryProcessedEvent(runID string, rec ProcessedRecord) Event {
	data := map[string]interface{}{
		"title": rec.Title,
		"added": rec.Added,
	}
	if rec.InfoHash != "" {
		data["info_hash"] = rec.InfoHash.String()
	}
	if rec.Error != "" {
		data["error"] = rec.Error
	}
	return NewRunEvent(EntryProcessed, runID, data)
}

// ParseEntryProcessedData extracts the EntryProcessed payload.
func (e *Event) ParseEntryProcessedData() (EntryProcessedData, bool) {
	title, ok := e.GetString("title")
	if !ok {
		return EntryProcessedData{}, false
	}
	return EntryProcessedData{
		Title:    title,
		InfoHash: e.GetStringOr("info_hash", ""),
		Added:    e.GetBoolOr("added", false),
		Error:    e.GetStringOr("error", ""),
	}, true
}

// RunFinishedEvent builds a RunCompleted or RunFailed event from a summary.
func RunFinishedEvent(s RunSummary) Event {
	eventType := RunCompleted
	if s.Status == StatusFailed {
		eventType = RunFailed
	}
	data := map[string]interface{}{
		"status":           string(s.Status),
		"seen":             int64(s.Seen),
		"matched":          int64(s.Matched),
		"added":            int64(s.Added),
		"duration_seconds": s.Duration().Seconds(),
	}
	if s.Error != "" {
		data["error"] = s.Error
	}
	return NewRunEvent(eventType, s.RunID, data)
}

// ParseRunSummary rebuilds the counters of a RunCompleted/RunFailed event.
// Timestamps are not carried in the payload.
func (e *Event) ParseRunSummary() (RunSummary, bool) {
	status, ok := e.GetString("status")
	if !ok {
		return RunSummary{}, false
	}
	return RunSummary{
		RunID:   e.AggregateID,
		Status:  RunStatus(status),
		Seen:    int(e.GetInt64Or("seen", 0)),
		Matched: int(e.GetInt64Or("matched", 0)),
		Added:   int(e.GetInt64Or("added", 0)),
		Error:   e.GetStringOr("error", ""),
	}, true
}
