package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chrisconley/auditor-collector/internal/infra"
	"github.com/chrisconley/auditor-collector/internal/store"
)

// Staging is the part of the local store the shim needs.
type Staging interface {
	Pending(ctx context.Context) ([]store.Entry, error)
	Delete(ctx context.Context, id string) error
	Flag(ctx context.Context, id, reason string) error
}

// Summary counts what one flush pass did.
type Summary struct {
	Acknowledged int
	Rejected     int
	Deferred     int
	Corrupt      int

	// Entries not attempted because the pass stopped early.
	Skipped int
}

type Shim struct {
	staging   Staging
	deliverer Deliverer
	timeout   time.Duration
	logger    *slog.Logger
	bus       *infra.Bus

	stopOnUnreachable bool
}

type ShimOption func(*Shim)

// StopOnUnreachable ends a pass at the first unreachable attempt, so a pass
// waits at most one timeout on a service that is down. The epilog uses it;
// full passes are left to the periodic flush.
func StopOnUnreachable() ShimOption {
	return func(s *Shim) { s.stopOnUnreachable = true }
}

func NewShim(staging Staging, deliverer Deliverer, timeout time.Duration, logger *slog.Logger, bus *infra.Bus, opts ...ShimOption) *Shim {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Shim{
		staging:   staging,
		deliverer: deliverer,
		timeout:   timeout,
		logger:    logger,
		bus:       bus,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Flush makes one delivery attempt for every pending entry.
//
// Acknowledged entries are deleted, rejected and undecodable ones are flagged
// for an operator, unreachable ones stay staged for the next invocation. A
// failure on one entry never stops the pass; such failures are joined into
// the returned error.
func (s *Shim) Flush(ctx context.Context) (Summary, error) {
	var summary Summary

	entries, err := s.staging.Pending(ctx)
	if err != nil {
		return summary, err
	}
	s.logger.Debug("Flushing staged records", "count", len(entries), "deliverer", s.deliverer.Name())

	var errs []error
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		deferred := summary.Deferred
		if err := s.flushOne(ctx, entry, &summary); err != nil {
			errs = append(errs, err)
		}
		if s.stopOnUnreachable && summary.Deferred > deferred {
			summary.Skipped = len(entries) - i - 1
			if summary.Skipped > 0 {
				s.logger.Info("Accounting service unreachable, leaving the rest for a later pass", "skipped", summary.Skipped)
			}
			break
		}
	}
	return summary, errors.Join(errs...)
}

func (s *Shim) flushOne(ctx context.Context, entry store.Entry, summary *Summary) error {
	logger := s.logger.With("record_id", entry.ID)

	if entry.Err != nil {
		summary.Corrupt++
		reason := fmt.Sprintf("undecodable staged entry: %v", entry.Err)
		logger.Error("Staged record cannot be decoded, flagging it", "error", entry.Err)
		s.bus.Publish(infra.RecordEvent{Type: infra.RecordCorrupt, RecordID: entry.ID, Reason: reason})
		return s.flag(ctx, entry.ID, reason)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
	outcome := s.deliverer.Deliver(attemptCtx, entry.Record)
	cancel()

	switch outcome.Status {
	case StatusAcknowledged:
		summary.Acknowledged++
		logger.Info("Record delivered")
		s.bus.Publish(infra.RecordEvent{Type: infra.RecordAcknowledged, RecordID: entry.ID})
		if err := s.staging.Delete(ctx, entry.ID); err != nil {
			logger.Error("Delivered record could not be removed from staging", "error", err)
			return err
		}
	case StatusRejected:
		summary.Rejected++
		logger.Error("Record rejected by accounting service, leaving it flagged for an operator", "reason", outcome.Reason)
		s.bus.Publish(infra.RecordEvent{Type: infra.RecordRejected, RecordID: entry.ID, Reason: outcome.Reason})
		return s.flag(ctx, entry.ID, outcome.Reason)
	default:
		summary.Deferred++
		logger.Warn("Accounting service unreachable, record stays staged", "reason", outcome.Reason)
		s.bus.Publish(infra.RecordEvent{Type: infra.RecordDeferred, RecordID: entry.ID, Reason: outcome.Reason})
	}
	return nil
}

func (s *Shim) flag(ctx context.Context, id, reason string) error {
	err := s.staging.Flag(ctx, id, reason)
	if errors.Is(err, store.ErrNotFound) {
		// Removed by a concurrent collector in the meantime.
		return nil
	}
	return err
}
