// Package delivery hands staged records to the central accounting service and
// removes them from the local store once they are acknowledged.
package delivery

import (
	"context"
	"fmt"

	"github.com/chrisconley/auditor-collector/specs"
)

type Status int

const (
	StatusAcknowledged Status = iota
	StatusRejected
	StatusUnreachable
)

func (s Status) String() string {
	switch s {
	case StatusAcknowledged:
		return "acknowledged"
	case StatusRejected:
		return "rejected"
	case StatusUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// Outcome is the result of one delivery attempt.
type Outcome struct {
	Status Status
	Reason string
}

// Acknowledged means the service accepted the record, or already had it.
func Acknowledged() Outcome {
	return Outcome{Status: StatusAcknowledged}
}

// Rejected means the service understood the record and refused it. Retrying
// will not help; an operator has to look at it.
func Rejected(format string, args ...any) Outcome {
	return Outcome{Status: StatusRejected, Reason: fmt.Sprintf(format, args...)}
}

// Unreachable means the attempt failed transiently and the record stays staged.
func Unreachable(format string, args ...any) Outcome {
	return Outcome{Status: StatusUnreachable, Reason: fmt.Sprintf(format, args...)}
}

func (o Outcome) String() string {
	if o.Reason == "" {
		return o.Status.String()
	}
	return o.Status.String() + ": " + o.Reason
}

// Deliverer sends one record to the central accounting service. Implementations
// must honour ctx's deadline and report a deadline as Unreachable.
type Deliverer interface {
	Name() string
	Deliver(ctx context.Context, record specs.RecordSpec) Outcome
}
