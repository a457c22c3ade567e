package store

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/chrisconley/auditor-collector/specs"
	"github.com/vmihailenco/msgpack/v5"
)

// CodecVersion prefixes every encoded record. Bump it together with a
// migration if RecordSpec changes shape.
const CodecVersion byte = 1

var ErrUnknownVersion = errors.New("unknown record encoding version")

// Encode serializes a record as one version byte followed by MessagePack.
func Encode(record specs.RecordSpec) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(CodecVersion)
	if err := msgpack.NewEncoder(&buf).Encode(&record); err != nil {
		return nil, fmt.Errorf("encode record %q: %w", record.RecordID, err)
	}
	return buf.Bytes(), nil
}

// Decode is the inverse of Encode. Times come back in UTC and empty
// component or score lists come back as empty, non-nil slices.
func Decode(data []byte) (specs.RecordSpec, error) {
	if len(data) == 0 {
		return specs.RecordSpec{}, fmt.Errorf("decode record: empty payload")
	}
	if data[0] != CodecVersion {
		return specs.RecordSpec{}, fmt.Errorf("decode record: %w %d", ErrUnknownVersion, data[0])
	}

	var record specs.RecordSpec
	if err := msgpack.Unmarshal(data[1:], &record); err != nil {
		return specs.RecordSpec{}, fmt.Errorf("decode record: %w", err)
	}

	record.StartTime = record.StartTime.UTC()
	if record.StopTime != nil {
		stop := record.StopTime.UTC()
		record.StopTime = &stop
	}
	if record.Components == nil {
		record.Components = []specs.ComponentSpec{}
	}
	for i := range record.Components {
		if record.Components[i].Scores == nil {
			record.Components[i].Scores = []specs.ScoreSpec{}
		}
	}
	return record, nil
}
