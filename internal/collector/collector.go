// Package collector turns one finished Slurm job into a staged accounting
// record and makes a delivery attempt for everything staged.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chrisconley/auditor-collector/internal"
	"github.com/chrisconley/auditor-collector/internal/config"
	"github.com/chrisconley/auditor-collector/internal/delivery"
	"github.com/chrisconley/auditor-collector/internal/infra"
	"github.com/chrisconley/auditor-collector/specs"
)

// Attribute keys read from the scheduler in addition to the rule keys.
const (
	UserIDKey    = "UserId"
	GroupIDKey   = "GroupId"
	StartTimeKey = "StartTime"
	EndTimeKey   = "EndTime"
)

type Querier interface {
	Query(ctx context.Context, jobID string) (internal.Attributes, error)
}

type Stager interface {
	Put(ctx context.Context, id string, record specs.RecordSpec) error
}

type Flusher interface {
	Flush(ctx context.Context) (delivery.Summary, error)
}

type Collector struct {
	cfg     config.Config
	querier Querier
	stager  Stager
	flusher Flusher
	logger  *slog.Logger
	bus     *infra.Bus
}

func New(cfg config.Config, querier Querier, stager Stager, flusher Flusher, logger *slog.Logger, bus *infra.Bus) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		cfg:     cfg,
		querier: querier,
		stager:  stager,
		flusher: flusher,
		logger:  logger,
		bus:     bus,
	}
}

// Result describes one collector run.
type Result struct {
	RecordID string
	Delivery delivery.Summary
}

// Collect builds the record for jobID, stages it and flushes the store.
//
// Nothing is staged when the job data or rules fail. Once Put returns the
// record is durable; a failed or skipped delivery leaves it for a later run.
func (c *Collector) Collect(ctx context.Context, jobID string) (Result, error) {
	logger := c.logger.With("slurm_job_id", jobID)

	attrs, err := c.querier.Query(ctx, jobID)
	if err != nil {
		return Result{}, fmt.Errorf("query job %s: %w", jobID, err)
	}
	logger.Debug("Acquired job info", "attributes", len(attrs.Keys()))

	record, err := c.Build(jobID, attrs)
	if err != nil {
		return Result{}, err
	}
	spec := record.ToSpec()
	logger.Debug("Constructed record", "record_id", spec.RecordID, "components", len(spec.Components))

	if err := c.stager.Put(ctx, spec.RecordID, spec); err != nil {
		return Result{}, fmt.Errorf("stage record %s: %w", spec.RecordID, err)
	}
	logger.Info("Record staged", "record_id", spec.RecordID)
	c.bus.Publish(infra.RecordEvent{Type: infra.RecordStaged, RecordID: spec.RecordID})

	summary, err := c.flusher.Flush(ctx)
	result := Result{RecordID: spec.RecordID, Delivery: summary}
	if err != nil {
		return result, fmt.Errorf("flush staged records: %w", err)
	}
	return result, nil
}

// Build derives the closed record for a job from its scheduler attributes.
func (c *Collector) Build(jobID string, attrs internal.Attributes) (internal.ClosedRecord, error) {
	components, err := internal.Derive(attrs, c.cfg.Rules)
	if err != nil {
		return internal.ClosedRecord{}, err
	}

	userID, err := attrs.Require(UserIDKey)
	if err != nil {
		return internal.ClosedRecord{}, err
	}
	groupID, err := attrs.Require(GroupIDKey)
	if err != nil {
		return internal.ClosedRecord{}, err
	}

	start, err := c.timestamp(attrs, StartTimeKey)
	if err != nil {
		return internal.ClosedRecord{}, err
	}
	stop, err := c.timestamp(attrs, EndTimeKey)
	if err != nil {
		return internal.ClosedRecord{}, err
	}

	open, err := internal.BuildRecord(specs.IdentitySpec{
		RecordID: RecordID(c.cfg.RecordPrefix, jobID),
		SiteID:   c.cfg.SiteID,
		UserID:   userID,
		GroupID:  groupID,
	}, start, components)
	if err != nil {
		return internal.ClosedRecord{}, err
	}
	return open.Finalize(stop)
}

func (c *Collector) timestamp(attrs internal.Attributes, key string) (time.Time, error) {
	raw, err := attrs.Require(key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := internal.ParseTimestamp(raw, c.cfg.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return t, nil
}

// RecordID is the accounting id of a job: the sanitized prefix, a dash, the job id.
func RecordID(prefix, jobID string) string {
	return internal.Sanitize(prefix) + "-" + jobID
}
