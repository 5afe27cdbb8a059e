// -*- tab-width:2 -*-

// Package netchan is a channel processor that sits between pairs of
// message queues and applies network impairment semantics (delay,
// jitter, drop) to every packet passing through, forwarding with
// retry and exponential backoff.
package netchan

import (
	"sync"
	"time"

	ll "github.com/jayalane/go-lll"
)

var (
	ml     *ll.Lll
	mlOnce sync.Once
)

const memQueueDepth = 1024

// Milliseconds is the time unit used throughout the channel config.
type Milliseconds float64

// Duration converts ms into a time.Duration.
func (m Milliseconds) Duration() time.Duration {
	return time.Duration(float64(m) * float64(time.Millisecond))
}

// Init must be called before processing any packets;
// it merely inits the logger.
func Init() {
	mlOnce.Do(func() {
		ml = ll.Init("CHAN", "none")
	})
}

// InitWithLogger is an init where you can
// pass in the go-lll logger.
func InitWithLogger(ll *ll.Lll) {
	mlOnce.Do(func() {
		ml = ll
	})
}
