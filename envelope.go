// -*- tab-width:2 -*-

package netchan

import "time"

// ChannelID names one of the two traffic directions.
type ChannelID string

// The two channels; each runs an identical pipeline with its own config.
const (
	ChannelRequest ChannelID = "request"
	ChannelReply   ChannelID = "reply"
)

// Outcome is the terminal state of an envelope. Every envelope
// reaches exactly one of these.
type Outcome int

// Terminal outcomes.
const (
	OutcomeDropped Outcome = iota
	OutcomeDelivered
	OutcomeAbandoned
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDropped:
		return "dropped"
	case OutcomeDelivered:
		return "delivered"
	case OutcomeAbandoned:
		return "abandoned"
	}

	return "unknown"
}

// Envelope is the unit of work flowing through a channel pipeline.
// The payload is opaque; the core never inspects or mutates it.
type Envelope struct {
	Payload     []byte
	Channel     ChannelID
	EnqueueTime time.Time // when pulled off the ingress queue
	ReleaseTime time.Time // computed once by the decision engine
	Attempts    int       // forwarding attempts so far
}
