package internal

import (
	"fmt"
	"time"

	"github.com/chrisconley/auditor-collector/specs"
)

// Record is either an OpenRecord or a ClosedRecord.
type Record interface {
	Identifier() ValidName
	ToSpec() specs.RecordSpec
}

// OpenRecord is a record whose job has started but whose stop time is not yet known.
type OpenRecord struct {
	RecordID   ValidName
	SiteID     ValidName
	UserID     ValidName
	GroupID    ValidName
	StartTime  RecordTime
	Components []Component
}

// ClosedRecord is a finalized record; only closed records have a runtime.
type ClosedRecord struct {
	OpenRecord
	StopTime RecordTime
}

// BuildSpec implements specs.Build.
func BuildSpec(identity specs.IdentitySpec, start time.Time, componentSpecs []specs.ComponentSpec) (specs.RecordSpec, error) {
	components := make([]Component, len(componentSpecs))
	for i, c := range componentSpecs {
		component, err := ComponentFromSpec(c)
		if err != nil {
			return specs.RecordSpec{}, fmt.Errorf("invalid component[%d]: %w", i, err)
		}
		components[i] = component
	}
	record, err := BuildRecord(identity, start, components)
	if err != nil {
		return specs.RecordSpec{}, err
	}
	return record.ToSpec(), nil
}

// BuildRecord sanitizes and validates the identifiers and assembles an open record.
func BuildRecord(identity specs.IdentitySpec, start time.Time, components []Component) (OpenRecord, error) {
	recordID, err := NewValidName("record id", identity.RecordID)
	if err != nil {
		return OpenRecord{}, err
	}

	siteID, err := NewValidName("site id", identity.SiteID)
	if err != nil {
		return OpenRecord{}, err
	}

	userID, err := NewValidName("user id", identity.UserID)
	if err != nil {
		return OpenRecord{}, err
	}

	groupID, err := NewValidName("group id", identity.GroupID)
	if err != nil {
		return OpenRecord{}, err
	}

	startTime, err := NewRecordTime("start time", start)
	if err != nil {
		return OpenRecord{}, err
	}

	if components == nil {
		components = []Component{}
	}

	return OpenRecord{
		RecordID:   recordID,
		SiteID:     siteID,
		UserID:     userID,
		GroupID:    groupID,
		StartTime:  startTime,
		Components: components,
	}, nil
}

// Finalize sets the stop time. It is the only way to obtain a ClosedRecord.
func (r OpenRecord) Finalize(stop time.Time) (ClosedRecord, error) {
	stopTime, err := NewRecordTime("stop time", stop)
	if err != nil {
		return ClosedRecord{}, err
	}
	if stopTime.ToTime().Before(r.StartTime.ToTime()) {
		return ClosedRecord{}, &ValidationError{
			Field:  "stop time",
			Value:  stop.Format(time.RFC3339),
			Reason: fmt.Sprintf("is before start time %s", r.StartTime.ToTime().Format(time.RFC3339)),
		}
	}
	return ClosedRecord{OpenRecord: r, StopTime: stopTime}, nil
}

func (r OpenRecord) Identifier() ValidName {
	return r.RecordID
}

func (r OpenRecord) ToSpec() specs.RecordSpec {
	components := make([]specs.ComponentSpec, len(r.Components))
	for i, c := range r.Components {
		components[i] = c.ToSpec()
	}
	return specs.RecordSpec{
		RecordID:   r.RecordID.ToString(),
		SiteID:     r.SiteID.ToString(),
		UserID:     r.UserID.ToString(),
		GroupID:    r.GroupID.ToString(),
		Components: components,
		StartTime:  r.StartTime.ToTime(),
	}
}

// Runtime is the stop time minus the start time in whole seconds.
func (r ClosedRecord) Runtime() int64 {
	return int64(r.StopTime.ToTime().Sub(r.StartTime.ToTime()) / time.Second)
}

func (r ClosedRecord) ToSpec() specs.RecordSpec {
	spec := r.OpenRecord.ToSpec()
	stop := r.StopTime.ToTime()
	runtime := r.Runtime()
	spec.StopTime = &stop
	spec.Runtime = &runtime
	return spec
}

// RecordFromSpec re-validates a record spec. The runtime is recomputed rather
// than trusted.
func RecordFromSpec(spec specs.RecordSpec) (Record, error) {
	components := make([]Component, len(spec.Components))
	for i, c := range spec.Components {
		component, err := ComponentFromSpec(c)
		if err != nil {
			return nil, fmt.Errorf("invalid component[%d]: %w", i, err)
		}
		components[i] = component
	}

	open, err := BuildRecord(specs.IdentitySpec{
		RecordID: spec.RecordID,
		SiteID:   spec.SiteID,
		UserID:   spec.UserID,
		GroupID:  spec.GroupID,
	}, spec.StartTime, components)
	if err != nil {
		return nil, err
	}
	if spec.StopTime == nil {
		return open, nil
	}
	return open.Finalize(*spec.StopTime)
}

// RecordTime is a non-zero UTC timestamp.
type RecordTime struct {
	value time.Time
}

func NewRecordTime(field string, value time.Time) (RecordTime, error) {
	if value.IsZero() {
		return RecordTime{}, &ValidationError{Field: field, Value: "", Reason: "is required"}
	}
	return RecordTime{value: value.UTC()}, nil
}

func (t RecordTime) ToTime() time.Time {
	return t.value
}

// SlurmTimeLayout is the layout scontrol uses for StartTime and EndTime.
const SlurmTimeLayout = "2006-01-02T15:04:05"

// ParseTimestamp reads a scheduler timestamp expressed in loc (UTC if nil).
func ParseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(SlurmTimeLayout, raw, loc)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "timestamp", Value: raw, Reason: err.Error()}
	}
	return t.UTC(), nil
}
