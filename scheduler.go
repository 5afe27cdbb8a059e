// -*- tab-width:2 -*-

package netchan

// This file holds delay-decided packets and releases each at its
// release time.

import (
	"container/heap"
	"sync"
	"time"

	count "github.com/jayalane/go-counter"
)

const idleWait = 60 * time.Second

// Scheduler holds an arbitrary number of delayed envelopes and hands
// each to its deliver callback at release time, earliest first. A
// later release never blocks an earlier one, whatever the insertion
// order. Depth is unbounded; it is marked as a counter distribution
// so overload is observable rather than silently capped.
type Scheduler struct {
	id      ChannelID
	deliver func(*Envelope)

	mu sync.Mutex
	pq releaseQueue

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

// NewScheduler builds a scheduler for one channel. deliver must
// return quickly (the coordinator hands the envelope to a forwarding
// goroutine); it is never called with the queue lock held.
func NewScheduler(id ChannelID, deliver func(*Envelope)) *Scheduler {
	return &Scheduler{
		id:      id,
		deliver: deliver,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Run starts the timing loop goroutine.
func (s *Scheduler) Run() {
	go s.runner()
}

// Schedule inserts an envelope keyed by its release time. Safe to
// call concurrently with the timing loop. If the new entry becomes
// the earliest pending one the loop is woken early.
func (s *Scheduler) Schedule(env *Envelope) {
	it := &item{env: env, releaseAt: env.ReleaseTime}

	s.mu.Lock()
	heap.Push(&s.pq, it)
	first := s.pq[0] == it
	depth := len(s.pq)
	s.mu.Unlock()

	count.MarkDistribution("sched_depth_"+string(s.id), float64(depth))

	if first {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// Len reports the number of pending envelopes.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.pq)
}

// Stop terminates the timing loop and waits for it to exit. Pending
// envelopes stay queued for Drain.
func (s *Scheduler) Stop() {
	close(s.done)
	<-s.stopped
}

// Drain removes and returns every still-pending envelope in release
// order. Call only after Stop.
func (s *Scheduler) Drain() []*Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Envelope, 0, len(s.pq))
	for s.pq.Len() > 0 {
		it := heap.Pop(&s.pq).(*item)
		out = append(out, it.env)
	}

	return out
}

func (s *Scheduler) runner() {
	defer close(s.stopped)

	for {
		s.mu.Lock()

		var due []*Envelope

		now := time.Now()
		for {
			next := s.pq.peek()
			if next == nil || next.releaseAt.After(now) {
				break
			}

			it := heap.Pop(&s.pq).(*item)
			due = append(due, it.env)
		}

		wait := idleWait
		if next := s.pq.peek(); next != nil {
			wait = time.Until(next.releaseAt)
		}

		s.mu.Unlock()

		// Handoff outside the lock so forwarding work never
		// serializes with inserts.
		for _, env := range due {
			count.IncrSyncSuffix("sched_released", string(s.id))
			s.deliver(env)
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-s.wake:
			timer.Stop()
		case <-s.done:
			timer.Stop()

			return
		}
	}
}
