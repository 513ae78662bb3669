package models

import "time"

// Event types written to the event log.
const (
	EventSignalAcquired        = "SIGNAL_ACQUIRED"
	EventSignalLost            = "SIGNAL_LOST"
	EventTransportFault        = "TRANSPORT_FAULT"
	EventParamsChange          = "PARAMS_CHANGE"
	EventCalibrationPhase      = "CALIBRATION_PHASE"
	EventCalibrationResult     = "CALIBRATION_RESULT"
	EventCalibrationFault      = "CALIBRATION_FAULT"
	EventCalibrationIncomplete = "CALIBRATION_INCOMPLETE"
)

// Event is a single log entry.
type Event struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // SIGNAL_LOST | TRANSPORT_FAULT | PARAMS_CHANGE | CALIBRATION_* ...
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}

// EventFilter narrows an event log query. Zero fields do not filter.
type EventFilter struct {
	From  time.Time
	To    time.Time
	Type  string
	Limit int
}
