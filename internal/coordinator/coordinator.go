// Package coordinator implements an embedded single-process coordinator.
//
// It owns the table's transaction lifecycle for a standalone sink: it
// issues instant times on request, aggregates flush events from the
// task, persists a commit marker on the timeline when the final event of
// an instant arrives, opens the next instant and confirms the gateway.
package coordinator

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/lakeflow/tablesink/internal/errors"
	"github.com/lakeflow/tablesink/pkg/objstore"
	"github.com/lakeflow/tablesink/pkg/record"
	"github.com/lakeflow/tablesink/pkg/sink"
)

// instantTimeLayout renders instants as millisecond-resolution timestamps.
const instantTimeLayout = "20060102150405.000"

// Confirmer is notified when the coordinator opens a new instant.
type Confirmer interface {
	Confirm()
}

// MetricsCollector defines metrics operations for the coordinator.
type MetricsCollector interface {
	IncInstantsOpened()
	IncCommits(status string)
}

// CommitMarker is the timeline record persisted for a committed instant.
type CommitMarker struct {
	InstantTime string               `json:"instant_time"`
	Statuses    []record.WriteStatus `json:"statuses"`
	EndOfInput  bool                 `json:"end_of_input"`
	CommittedAt time.Time            `json:"committed_at"`
}

// TimelineKeyer maps an instant to its commit-marker object key.
type TimelineKeyer interface {
	TimelineKey(instant string) string
}

// Coordinator aggregates flush events and drives the instant lifecycle.
type Coordinator struct {
	store     objstore.Writer
	timeline  TimelineKeyer
	logger    *slog.Logger
	metrics   MetricsCollector
	now       func() time.Time
	confirmer Confirmer

	mu          sync.Mutex
	current     string
	lastInstant string
	statuses    []record.WriteStatus
}

var (
	_ sink.InstantResolver = (*Coordinator)(nil)
	_ sink.EventReceiver   = (*Coordinator)(nil)
)

// New creates a coordinator persisting commit markers through the given
// object store at keys supplied by the timeline layout.
func New(store objstore.Writer, timeline TimelineKeyer, logger *slog.Logger, metrics MetricsCollector) *Coordinator {
	return &Coordinator{
		store:    store,
		timeline: timeline,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Bind registers the gateway to confirm once a new instant opens. It must
// be called before the first flush event arrives.
func (c *Coordinator) Bind(confirmer Confirmer) {
	c.confirmer = confirmer
}

// CurrentOrRequest returns the open instant, requesting a new one when
// none is open and data is pending. It returns "" only when no data is
// pending.
func (c *Coordinator) CurrentOrRequest(ctx context.Context, hasPending bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == "" {
		if !hasPending {
			return "", nil
		}
		c.openInstantLocked()
	}
	return c.current, nil
}

// OnFlushEvent receives one flush event from the task. Partial events
// accumulate write statuses; the final event of an instant commits the
// timeline marker, opens the next instant and confirms the gateway.
//
// A commit failure deliberately withholds confirmation: the task's
// bounded wait then fails it, which is the escalation path for every
// coordination error.
func (c *Coordinator) OnFlushEvent(ev record.FlushEvent) {
	c.mu.Lock()
	c.statuses = append(c.statuses, ev.Statuses...)
	if !ev.LastBatch {
		c.mu.Unlock()
		return
	}

	statuses := c.statuses
	c.statuses = nil

	if err := c.commit(ev.InstantTime, statuses, ev.EndOfInput); err != nil {
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.IncCommits("failure")
		}
		c.logger.Error("failed to commit instant, withholding confirmation",
			"instant", ev.InstantTime,
			"error", err,
		)
		return
	}
	if c.metrics != nil {
		c.metrics.IncCommits("success")
	}

	c.current = ""
	if !ev.EndOfInput {
		c.openInstantLocked()
	}
	c.mu.Unlock()

	if c.confirmer != nil {
		c.confirmer.Confirm()
	}
}

// CurrentInstant returns the open instant, or "" when none is open.
func (c *Coordinator) CurrentInstant() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Coordinator) openInstantLocked() {
	instant := instantTime(c.now().UTC())
	// Instants must be strictly increasing even within one millisecond.
	if instant <= c.lastInstant {
		instant = c.lastInstant + "0"
	}
	c.current = instant
	c.lastInstant = instant

	if c.metrics != nil {
		c.metrics.IncInstantsOpened()
	}
	c.logger.Info("opened new instant", "instant", instant)
}

func (c *Coordinator) commit(instant string, statuses []record.WriteStatus, endOfInput bool) error {
	marker := CommitMarker{
		InstantTime: instant,
		Statuses:    statuses,
		EndOfInput:  endOfInput,
		CommittedAt: c.now().UTC(),
	}
	data, err := json.Marshal(marker)
	if err != nil {
		return &errors.CommitError{InstantTime: instant, Err: err}
	}

	key := c.timeline.TimelineKey(instant)
	if _, err := c.store.Put(context.Background(), key, data); err != nil {
		return &errors.CommitError{InstantTime: instant, Err: err}
	}

	c.logger.Info("committed instant",
		"instant", instant,
		"statuses", len(statuses),
		"end_of_input", endOfInput,
	)
	return nil
}

func instantTime(t time.Time) string {
	s := t.Format(instantTimeLayout)
	return s[:14] + s[15:]
}
