package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeIngestStarted is emitted when an ingestion run begins.
	EventTypeIngestStarted = "releaselens.ingest.started"

	// EventTypeIngestCompleted is emitted after an ingestion run rebuilds
	// the index.
	EventTypeIngestCompleted = "releaselens.ingest.completed"

	// EventTypeIngestFailed is emitted when an ingestion run aborts.
	EventTypeIngestFailed = "releaselens.ingest.failed"
)

// IngestEvent is a transport-neutral event payload for an ingestion
// lifecycle transition.
type IngestEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	RunID         string    `json:"run_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	// Populated on completed and failed events.
	Tables     int      `json:"tables,omitempty"`
	Chunks     int      `json:"chunks,omitempty"`
	Failures   []string `json:"failures,omitempty"`
	DurationMs int64    `json:"duration_ms,omitempty"`
	Error      string   `json:"error,omitempty"`
}
