// Package gateway implements the commit handshake between the buffering
// core and the coordinator.
//
// Flush events are forwarded to the coordinator's receiver; after a
// checkpoint-boundary event the gateway blocks further buffering until
// the coordinator confirms a new instant is open. This barrier guarantees
// at most one open transaction per checkpoint interval.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lakeflow/tablesink/internal/errors"
	"github.com/lakeflow/tablesink/pkg/record"
	"github.com/lakeflow/tablesink/pkg/sink"
)

// State is the gateway's position in the checkpoint protocol.
type State int

const (
	// StateAccepting means records may be buffered.
	StateAccepting State = iota

	// StateDraining means a checkpoint drain is in progress.
	StateDraining

	// StateAwaitingConfirmation means the final event for the current
	// instant was published and the coordinator has not yet opened the
	// next one.
	StateAwaitingConfirmation
)

func (s State) String() string {
	switch s {
	case StateAccepting:
		return "accepting"
	case StateDraining:
		return "draining"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Gateway forwards flush events to the coordinator and gates ingestion
// across checkpoint boundaries.
type Gateway struct {
	receiver sink.EventReceiver
	timeout  time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	confirmCh chan struct{}
}

// New creates a gateway publishing to the given receiver. The timeout
// bounds the wait for instant confirmation after a final flush.
func New(receiver sink.EventReceiver, timeout time.Duration, logger *slog.Logger) *Gateway {
	return &Gateway{
		receiver: receiver,
		timeout:  timeout,
		logger:   logger,
		state:    StateAccepting,
	}
}

// State returns the current protocol state.
func (g *Gateway) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Accepting reports whether ingestion may currently proceed.
func (g *Gateway) Accepting() bool {
	return g.State() == StateAccepting
}

// StateName returns the current protocol state as a string, for health
// reporting.
func (g *Gateway) StateName() string {
	return g.State().String()
}

// BeginDrain marks the start of a checkpoint drain.
func (g *Gateway) BeginDrain() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = StateDraining
}

// CancelDrain returns to accepting without publishing, used when a
// checkpoint finds neither pending data nor an open instant.
func (g *Gateway) CancelDrain() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateDraining {
		g.state = StateAccepting
	}
}

// Publish forwards a flush event to the coordinator. A final event arms
// the confirmation barrier before it is forwarded, so a synchronous
// coordinator may confirm from within its receiver callback.
func (g *Gateway) Publish(ev record.FlushEvent) {
	if ev.LastBatch {
		g.mu.Lock()
		g.state = StateAwaitingConfirmation
		g.confirmCh = make(chan struct{})
		g.mu.Unlock()
	}
	g.receiver.OnFlushEvent(ev)
}

// Confirm signals that the coordinator opened a new instant. Confirming
// while not awaiting is a no-op.
func (g *Gateway) Confirm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateAwaitingConfirmation {
		return
	}
	g.state = StateAccepting
	close(g.confirmCh)
	g.confirmCh = nil
}

// WaitReady blocks until the coordinator confirms the next instant. It
// returns immediately when no confirmation is pending. Expiry of the
// configured timeout is fatal: proceeding without confirmation risks
// writing under the wrong instant.
func (g *Gateway) WaitReady(ctx context.Context) error {
	g.mu.Lock()
	if g.state != StateAwaitingConfirmation {
		g.mu.Unlock()
		return nil
	}
	ch := g.confirmCh
	g.mu.Unlock()

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return nil
	case <-timer.C:
		g.logger.Error("instant confirmation did not arrive",
			"timeout", g.timeout.String(),
		)
		return errors.ErrConfirmationTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
