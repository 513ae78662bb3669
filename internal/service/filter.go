package service

import "time"

// LogFilter supports history filtering by time range, type and count.
type LogFilter struct {
	From  time.Time // inclusive; zero means no lower bound
	To    time.Time // inclusive; zero means no upper bound
	Type  string    // "", "SIGNAL_LOST", "TRANSPORT_FAULT", "PARAMS_CHANGE", "CALIBRATION_RESULT", ...
	Limit int       // newest N events; 0 means all
}
