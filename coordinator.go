// -*- tab-width:2 -*-

package netchan

// This file drives one channel's pipeline: consume, decide,
// schedule, forward.

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	count "github.com/jayalane/go-counter"
	"golang.org/x/exp/rand"
)

// State is the lifecycle state of a coordinator.
type State int32

// Idle until Run is called, Consuming while the ingress loop is
// live, Stopped after shutdown completes.
const (
	StateIdle State = iota
	StateConsuming
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConsuming:
		return "consuming"
	case StateStopped:
		return "stopped"
	}

	return "unknown"
}

// Coordinator owns one channel's pipeline instance. The two channels
// of a deployment run independent coordinators sharing no mutable
// state.
type Coordinator struct {
	id      ChannelID
	cfg     *ChannelConfig
	in      Receiver
	decider *Decider
	sched   *Scheduler
	fwd     *Forwarder
	capture *Capture

	state atomic.Int32

	fwdWG     sync.WaitGroup
	fwdCtx    context.Context
	fwdCancel context.CancelFunc
}

// NewCoordinator validates cfg and assembles the pipeline for one
// channel between in and out. A nonzero cfg.Seed makes the
// impairment decisions reproducible.
func NewCoordinator(id ChannelID, cfg *ChannelConfig, in Receiver, out Publisher) (*Coordinator, error) {
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	decider, err := NewDecider(cfg, rand.NewSource(seed))
	if err != nil {
		return nil, err
	}

	c := Coordinator{
		id:      id,
		cfg:     cfg,
		in:      in,
		decider: decider,
		fwd:     NewForwarder(id, out, cfg.Retry),
	}
	c.sched = NewScheduler(id, c.forwardAsync)

	if cfg.CapturePath != "" {
		c.capture, err = OpenCapture(cfg.CapturePath)
		if err != nil {
			return nil, err
		}
	}

	return &c, nil
}

// State returns the coordinator lifecycle state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// forwardAsync hands a released envelope to its own forwarding
// goroutine; each packet's retry timeline is independent.
func (c *Coordinator) forwardAsync(env *Envelope) {
	c.fwdWG.Add(1)

	go func() {
		defer c.fwdWG.Done()
		c.fwd.Forward(c.fwdCtx, env)
	}()
}

// Run consumes from the ingress queue until ctx is canceled or the
// queue closes, driving every packet through decide, schedule and
// forward. On shutdown the configured policy is applied to
// still-scheduled packets within the drain grace period. Returns a
// non-nil error only when the ingress adapter fails outright; that
// boundary belongs to the external collaborator.
func (c *Coordinator) Run(ctx context.Context) error {
	c.state.Store(int32(StateConsuming))
	ml.La("Coordinator consuming", c.id)

	// Forwarding outlives ctx so drained packets can still go out;
	// the grace timer below cuts it off.
	c.fwdCtx, c.fwdCancel = context.WithCancel(context.Background())
	c.sched.Run()

	var runErr error

	for {
		body, err := c.in.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				break
			}

			runErr = err

			break
		}

		env := &Envelope{
			Payload:     body,
			Channel:     c.id,
			EnqueueTime: time.Now(),
		}

		if c.capture != nil {
			if err := c.capture.Log(body); err != nil {
				count.IncrSyncSuffix("capture_error", string(c.id))
				ml.Ls("Traffic capture write failed", c.id, err)
			}
		}

		v := c.decider.Decide(env)
		if v.Drop {
			count.IncrSyncSuffix("packet_dropped", string(c.id))
			ml.Ls("Dropped packet", c.id, "bytes", len(env.Payload))

			continue
		}

		count.IncrSyncSuffix("packet_delayed", string(c.id))
		count.MarkDistribution("delay_ms_"+string(c.id), float64(v.Delay))
		ml.Ln("Delaying packet", c.id, v.Delay, "ms")

		c.sched.Schedule(env)
	}

	c.shutdown()
	ml.La("Coordinator stopped", c.id)

	return runErr
}

// shutdown applies the configured drain-or-discard policy and waits,
// bounded by the grace period, for in-flight forwards.
func (c *Coordinator) shutdown() {
	c.sched.Stop()

	pending := c.sched.Drain()

	switch c.cfg.Shutdown {
	case ShutdownDiscard:
		for range pending {
			count.IncrSyncSuffix("sched_discarded", string(c.id))
		}

		ml.La("Discarded", len(pending), "scheduled packets on", c.id)
	default: // drain
		ml.La("Draining", len(pending), "scheduled packets on", c.id)

		for _, env := range pending {
			c.forwardAsync(env)
		}
	}

	done := make(chan struct{})
	go func() {
		c.fwdWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(c.cfg.DrainGrace.Duration()):
		ml.La("Drain grace expired on", c.id, "abandoning in-flight packets")
		c.fwdCancel()
		<-done
	}

	c.fwdCancel()

	if c.capture != nil {
		if err := c.capture.Close(); err != nil {
			ml.Ls("Traffic capture close failed", c.id, err)
		}
	}

	c.state.Store(int32(StateStopped))
}
