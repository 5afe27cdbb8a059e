// -*- tab-width:2 -*-

package netchan

// This file publishes released packets to the egress queue with
// retry and exponential backoff.

import (
	"context"
	"time"

	count "github.com/jayalane/go-counter"
)

// Forwarder attempts to publish released envelopes to the egress
// queue. Failures are always transient: retried with backoff up to
// the policy cap, then the one packet is abandoned. Each envelope's
// retry timeline is independent; Forward is safe to run from many
// goroutines at once.
type Forwarder struct {
	id     ChannelID
	out    Publisher
	policy *RetryPolicy
}

// NewForwarder builds a forwarder for one channel's egress queue.
func NewForwarder(id ChannelID, out Publisher, policy *RetryPolicy) *Forwarder {
	return &Forwarder{id: id, out: out, policy: policy}
}

// Forward publishes env.Payload, retrying per the policy. Returns
// Delivered or Abandoned; never more than one successful publish per
// envelope. A canceled ctx ends the backoff wait early and abandons
// the packet after its current attempt.
func (f *Forwarder) Forward(ctx context.Context, env *Envelope) Outcome {
	for {
		env.Attempts++

		err := f.out.Publish(ctx, env.Payload)
		if err == nil {
			count.IncrSyncSuffix("packet_delivered", string(f.id))
			ml.Ln("Forwarded packet", f.id, "bytes", len(env.Payload),
				"attempt", env.Attempts)

			return OutcomeDelivered
		}

		count.IncrSyncSuffix("forward_attempt_failed", string(f.id))
		ml.Ls("Forward attempt failed", f.id, "attempt", env.Attempts, err)

		if env.Attempts > f.policy.MaxRetries {
			count.IncrSyncSuffix("packet_abandoned", string(f.id))
			ml.La("Abandoning packet on", f.id, "after", env.Attempts, "attempts")

			return OutcomeAbandoned
		}

		wait := f.policy.DelayForAttempt(env.Attempts)
		ml.Ln("Retry", env.Attempts, "on", f.id, "in", wait, "ms")

		timer := time.NewTimer(wait.Duration())
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			count.IncrSyncSuffix("packet_abandoned_shutdown", string(f.id))

			return OutcomeAbandoned
		}
	}
}
