package specs

import "time"

// RecordSpec is the accounting entry for one finished job.
//
// It is the unit that is staged in the local store and shipped to the central
// accounting service. Times are UTC.
type RecordSpec struct {
	// Unique identifier of the record, usually "<prefix>-<slurm job id>".
	//
	// Re-submitting a record with the same identifier is idempotent on the
	// receiving side.
	RecordID string `json:"record_id" msgpack:"record_id"`

	// Site the job ran at.
	SiteID string `json:"site_id" msgpack:"site_id"`

	// User the job is accounted to, as reported by the scheduler.
	UserID string `json:"user_id" msgpack:"user_id"`

	// Group the job is accounted to, as reported by the scheduler.
	GroupID string `json:"group_id" msgpack:"group_id"`

	// Accounted resources, in rule configuration order. May be empty.
	Components []ComponentSpec `json:"components" msgpack:"components"`

	// When the job started. Always set.
	StartTime time.Time `json:"start_time" msgpack:"start_time"`

	// When the job stopped. Nil until the record has been finalized.
	StopTime *time.Time `json:"stop_time,omitempty" msgpack:"stop_time"`

	// StopTime - StartTime in whole seconds. Nil whenever StopTime is nil.
	Runtime *int64 `json:"runtime,omitempty" msgpack:"runtime"`
}

// ComponentSpec is a named, quantified resource dimension of a record.
type ComponentSpec struct {
	Name   string      `json:"name" msgpack:"name"`
	Amount int64       `json:"amount" msgpack:"amount"`
	Scores []ScoreSpec `json:"scores" msgpack:"scores"`
}

// ScoreSpec is a named weighting factor attached to a component.
type ScoreSpec struct {
	Name   string  `json:"name" msgpack:"name"`
	Factor float64 `json:"factor" msgpack:"factor"`
}

// IdentitySpec carries the raw identifiers of a record before sanitization.
type IdentitySpec struct {
	RecordID string
	SiteID   string
	UserID   string
	GroupID  string
}
