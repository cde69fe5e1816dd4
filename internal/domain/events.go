package domain

import "time"

// EventKind labels a pipeline lifecycle event.
type EventKind string

const (
	EventRecordingStarted EventKind = "recordingStarted"
	EventRecordingStopped EventKind = "recordingStopped"
	EventStageChanged     EventKind = "processingStageChanged"
	EventComplete         EventKind = "complete"
	EventFailed           EventKind = "failed"
)

// Stage identifies where a processing run currently is.
type Stage string

const (
	StageTranscribing Stage = "transcribing"
	StageGenerating   Stage = "generating"
	StageStoring      Stage = "storing"
	StageIndexing     Stage = "indexing"
)

// Event is delivered to pipeline listeners. Err is set only for EventFailed,
// InsightID only once a record exists.
type Event struct {
	Kind      EventKind
	Stage     Stage
	InsightID string
	Err       error
	At        time.Time
}
