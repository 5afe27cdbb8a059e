// -*- tab-width:2 -*-

package netchan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// recordingAcker stands in for the broker channel so the receive
// path can be exercised without a live RabbitMQ.
type recordingAcker struct {
	mu     sync.Mutex
	acked  []uint64
	ackErr error
}

func (a *recordingAcker) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.acked = append(a.acked, tag)

	return a.ackErr
}

func (a *recordingAcker) Nack(_ uint64, _, _ bool) error { return nil }

func (a *recordingAcker) Reject(_ uint64, _ bool) error { return nil }

func (a *recordingAcker) ackedTags() []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]uint64(nil), a.acked...)
}

func TestAMQPReceiverAcksOnReceipt(t *testing.T) {
	testInit()

	acker := &recordingAcker{}
	deliveries := make(chan amqp.Delivery, 1)
	deliveries <- amqp.Delivery{
		Acknowledger: acker,
		DeliveryTag:  7,
		Body:         []byte("ping"),
	}

	r := &amqpReceiver{queue: "q", deliveries: deliveries}

	body, err := r.Receive(context.Background())
	if err != nil {
		t.Fatal("receive failed", err)
	}

	if string(body) != "ping" {
		t.Error("got body", string(body))
	}

	tags := acker.ackedTags()
	if len(tags) != 1 || tags[0] != 7 {
		t.Error("expected delivery 7 acked once, got", tags)
	}
}

func TestAMQPReceiverAckFailureNotFatal(t *testing.T) {
	testInit()

	acker := &recordingAcker{ackErr: errors.New("channel gone")}
	deliveries := make(chan amqp.Delivery, 1)
	deliveries <- amqp.Delivery{
		Acknowledger: acker,
		DeliveryTag:  1,
		Body:         []byte("pong"),
	}

	r := &amqpReceiver{queue: "q", deliveries: deliveries}

	body, err := r.Receive(context.Background())
	if err != nil {
		t.Fatal("receive should survive a failed ack", err)
	}

	if string(body) != "pong" {
		t.Error("got body", string(body))
	}
}

func TestAMQPReceiverClosedConsumer(t *testing.T) {
	testInit()

	deliveries := make(chan amqp.Delivery)
	close(deliveries)

	r := &amqpReceiver{queue: "q", deliveries: deliveries}

	_, err := r.Receive(context.Background())
	if !errors.Is(err, ErrQueueClosed) {
		t.Error("expected ErrQueueClosed, got", err)
	}
}

func TestAMQPReceiverHonorsContext(t *testing.T) {
	testInit()

	r := &amqpReceiver{queue: "q", deliveries: make(chan amqp.Delivery)}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Receive(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected deadline exceeded, got", err)
	}
}
