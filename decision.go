// -*- tab-width:2 -*-

package netchan

// This file decides drop-or-forward and computes the release time.

import (
	"golang.org/x/exp/rand"
)

// Verdict is the impairment decision for a single packet, made
// exactly once; retries never re-trigger it.
type Verdict struct {
	Drop  bool
	Delay Milliseconds
}

// Decider applies drop and delay impairments per the channel config.
// One decider per channel pipeline; it owns its random state.
type Decider struct {
	cfg     *ChannelConfig
	sampler *Sampler
	rnd     *rand.Rand
}

// NewDecider validates the distribution block and builds the decision
// engine. A seeded src makes decisions reproducible for tests.
func NewDecider(cfg *ChannelConfig, src rand.Source) (*Decider, error) {
	sampler, err := NewSampler(cfg.Distribution.spec(), src)
	if err != nil {
		return nil, err
	}

	return &Decider{
		cfg:     cfg,
		sampler: sampler,
		rnd:     rand.New(src),
	}, nil
}

// Decide draws the drop decision and, for kept packets, the total
// delay. The drop check comes first so dropped packets incur no
// sampling cost. Sets env.ReleaseTime on kept packets.
func (d *Decider) Decide(env *Envelope) Verdict {
	if d.rnd.Float64() < d.cfg.DropProbability {
		return Verdict{Drop: true}
	}

	delay := d.sampler.Sample()

	if d.cfg.Jitter > 0 {
		delay += Milliseconds(d.rnd.Float64() * float64(d.cfg.Jitter))
	}

	if delay < d.cfg.MinDelay {
		delay = d.cfg.MinDelay
	}

	if delay > d.cfg.MaxDelay {
		delay = d.cfg.MaxDelay
	}

	env.ReleaseTime = env.EnqueueTime.Add(delay.Duration())

	return Verdict{Delay: delay}
}
