package collector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrisconley/auditor-collector/internal"
	"github.com/chrisconley/auditor-collector/internal/config"
	"github.com/chrisconley/auditor-collector/internal/delivery"
	"github.com/chrisconley/auditor-collector/internal/infra"
	"github.com/chrisconley/auditor-collector/internal/store"
	"github.com/chrisconley/auditor-collector/specs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
addr: localhost
site_id: site-a
record_prefix: "slurm/"
database_path: /unused
components:
  - name: nodes
    key: NNodes
  - name: Cores
    key: NumCPUs
    scores:
      - name: HEPSPEC
        factor: 1.1
        only_if:
          key: Partition
          matches: "^gpu$"
`

type staticQuerier map[string]string

func (q staticQuerier) Query(ctx context.Context, jobID string) (internal.Attributes, error) {
	return internal.NewAttributes(specs.AttributesSpec(q)), nil
}

type deliverFunc func(ctx context.Context, record specs.RecordSpec) delivery.Outcome

func (f deliverFunc) Name() string { return "func" }

func (f deliverFunc) Deliver(ctx context.Context, record specs.RecordSpec) delivery.Outcome {
	return f(ctx, record)
}

func testJob() staticQuerier {
	return staticQuerier{
		"JobId":     "1234",
		"UserId":    "alice(1000)",
		"GroupId":   "grp1(2000)",
		"StartTime": "2022-01-01T00:00:00",
		"EndTime":   "2022-01-01T01:00:00",
		"NNodes":    "2",
		"NumCPUs":   "64",
		"Partition": "cpu-short",
	}
}

type testHarness struct {
	store     *store.Store
	collector *Collector
	delivered []specs.RecordSpec
}

func newHarness(t *testing.T, job staticQuerier, outcome delivery.Outcome) *testHarness {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)

	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "staging.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	h := &testHarness{store: st}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deliverer := deliverFunc(func(ctx context.Context, record specs.RecordSpec) delivery.Outcome {
		h.delivered = append(h.delivered, record)
		return outcome
	})
	shim := delivery.NewShim(st, deliverer, time.Second, logger, nil)
	h.collector = New(cfg, job, st, shim, logger, nil)
	return h
}

func TestCollect(t *testing.T) {
	t.Run("delivers the closed record of a finished job", func(t *testing.T) {
		// Arrange
		h := newHarness(t, testJob(), delivery.Acknowledged())

		// Act
		result, err := h.collector.Collect(context.Background(), "1234")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "slurm-1234", result.RecordID)
		assert.Equal(t, 1, result.Delivery.Acknowledged)

		require.Len(t, h.delivered, 1)
		record := h.delivered[0]
		assert.Equal(t, "site-a", record.SiteID)
		assert.Equal(t, "alice1000", record.UserID)
		assert.Equal(t, "grp12000", record.GroupID)
		assert.Equal(t, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), record.StartTime)
		require.NotNil(t, record.Runtime)
		assert.Equal(t, int64(3600), *record.Runtime)

		require.Len(t, record.Components, 2)
		assert.Equal(t, "nodes", record.Components[0].Name)
		assert.Equal(t, int64(2), record.Components[0].Amount)
		assert.Empty(t, record.Components[1].Scores)

		entries, err := h.store.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("keeps the record staged when the service is unreachable", func(t *testing.T) {
		h := newHarness(t, testJob(), delivery.Unreachable("connection refused"))

		result, err := h.collector.Collect(context.Background(), "1234")

		require.NoError(t, err)
		assert.Equal(t, 1, result.Delivery.Deferred)
		entries, err := h.store.Pending(context.Background())
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "slurm-1234", entries[0].ID)
	})

	t.Run("flags a rejected record", func(t *testing.T) {
		h := newHarness(t, testJob(), delivery.Rejected("duplicate"))

		_, err := h.collector.Collect(context.Background(), "1234")

		require.NoError(t, err)
		entries, err := h.store.List(context.Background())
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].Flagged())
	})

	t.Run("stages nothing when a rule attribute is missing", func(t *testing.T) {
		job := testJob()
		delete(job, "NNodes")
		h := newHarness(t, job, delivery.Acknowledged())

		_, err := h.collector.Collect(context.Background(), "1234")

		var missing *internal.MissingAttributeError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "NNodes", missing.Key)
		assert.True(t, internal.IsJobDataError(err))
		entries, err := h.store.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, entries)
		assert.Empty(t, h.delivered)
	})

	t.Run("stages nothing when the job ended before it started", func(t *testing.T) {
		job := testJob()
		job["EndTime"] = "2021-12-31T23:00:00"
		h := newHarness(t, job, delivery.Acknowledged())

		_, err := h.collector.Collect(context.Background(), "1234")

		assert.True(t, internal.IsJobDataError(err))
		assert.Empty(t, h.delivered)
	})

	t.Run("rejects an unparseable end time", func(t *testing.T) {
		job := testJob()
		job["EndTime"] = "Unknown"
		h := newHarness(t, job, delivery.Acknowledged())

		_, err := h.collector.Collect(context.Background(), "1234")

		var invalid *internal.ValidationError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "Unknown", invalid.Value)
	})

	t.Run("publishes the staged record", func(t *testing.T) {
		h := newHarness(t, testJob(), delivery.Unreachable("down"))
		bus := infra.NewBus()
		var staged []string
		bus.Subscribe(infra.RecordStaged, func(e infra.Event) {
			staged = append(staged, e.(infra.RecordEvent).RecordID)
		})
		h.collector.bus = bus

		_, err := h.collector.Collect(context.Background(), "1234")

		require.NoError(t, err)
		assert.Equal(t, []string{"slurm-1234"}, staged)
	})
}

type failingQuerier struct{}

func (failingQuerier) Query(ctx context.Context, jobID string) (internal.Attributes, error) {
	return internal.Attributes{}, errors.New("slurmctld not responding")
}

func TestCollectQueryFailure(t *testing.T) {
	h := newHarness(t, testJob(), delivery.Acknowledged())
	h.collector.querier = failingQuerier{}

	_, err := h.collector.Collect(context.Background(), "1234")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "slurmctld not responding")
	assert.Empty(t, h.delivered)
}

func TestRecordID(t *testing.T) {
	assert.Equal(t, "slurm-42", RecordID("slurm", "42"))
	assert.Equal(t, "sitea-42", RecordID("site(a)", "42"))
}
