// -*- tab-width:2 -*-
package netchan

import (
	"context"
	"testing"
	"time"
)

func coordinatorConfig() *ChannelConfig {
	return &ChannelConfig{
		MinDelay: 0,
		MaxDelay: 10,
		Jitter:   0,
		Distribution: DistConfig{
			Type:       ModelUniform,
			Parameters: DistParams{Low: 0, High: 5},
		},
		Retry:      &RetryPolicy{MaxRetries: 2, BaseDelay: 5, Jitter: 0},
		DrainGrace: 2000,
		Seed:       42,
	}
}

// runCoordinator starts Run and returns a channel with its result.
func runCoordinator(t *testing.T, ctx context.Context, c *Coordinator) chan error {
	t.Helper()

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Run(ctx)
	}()

	return errCh
}

func waitStopped(t *testing.T, errCh chan error) error {
	t.Helper()

	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("coordinator did not stop")
	}

	return nil
}

func TestCoordinatorForwardsEverything(t *testing.T) {
	testInit()

	in := NewMemQueue()
	out := NewMemQueue()

	c, err := NewCoordinator(ChannelRequest, coordinatorConfig(), in, out)
	if err != nil {
		t.Fatal(err)
	}

	if c.State() != StateIdle {
		t.Fatalf("state %v before Run, want idle", c.State())
	}

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		if err := in.Publish(ctx, []byte{byte(i)}); err != nil {
			t.Fatal(err)
		}
	}

	in.Close()

	errCh := runCoordinator(t, ctx, c)
	if err := waitStopped(t, errCh); err != nil {
		t.Fatalf("run: %v", err)
	}

	if c.State() != StateStopped {
		t.Fatalf("state %v after Run, want stopped", c.State())
	}

	if out.Len() != 50 {
		t.Fatalf("forwarded %d packets, want 50", out.Len())
	}
}

func TestCoordinatorDropsEverything(t *testing.T) {
	testInit()

	cfg := coordinatorConfig()
	cfg.DropProbability = 1.0

	in := NewMemQueue()
	out := NewMemQueue()

	c, err := NewCoordinator(ChannelRequest, cfg, in, out)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		if err := in.Publish(ctx, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}

	in.Close()

	errCh := runCoordinator(t, ctx, c)
	if err := waitStopped(t, errCh); err != nil {
		t.Fatalf("run: %v", err)
	}

	if out.Len() != 0 {
		t.Fatalf("forwarded %d packets with drop_probability 1.0", out.Len())
	}
}

// With the discard policy, packets still scheduled at shutdown are
// thrown away instead of forwarded.
func TestCoordinatorDiscardPolicy(t *testing.T) {
	testInit()

	cfg := coordinatorConfig()
	cfg.MinDelay = 60_000 // schedule far past the test's lifetime
	cfg.MaxDelay = 120_000
	cfg.Shutdown = ShutdownDiscard
	cfg.DrainGrace = 100

	in := NewMemQueue()
	out := NewMemQueue()

	c, err := NewCoordinator(ChannelReply, cfg, in, out)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runCoordinator(t, ctx, c)

	for i := 0; i < 10; i++ {
		if err := in.Publish(context.Background(), []byte("x")); err != nil {
			t.Fatal(err)
		}
	}

	// Let the coordinator schedule them before shutting down.
	deadline := time.Now().Add(2 * time.Second)
	for in.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	cancel()

	if err := waitStopped(t, errCh); err != nil {
		t.Fatalf("run: %v", err)
	}

	if out.Len() != 0 {
		t.Fatalf("discard policy forwarded %d packets", out.Len())
	}
}

// With the drain policy the same shutdown forwards the scheduled
// packets before stopping.
func TestCoordinatorDrainPolicy(t *testing.T) {
	testInit()

	cfg := coordinatorConfig()
	cfg.MinDelay = 60_000
	cfg.MaxDelay = 120_000
	cfg.Shutdown = ShutdownDrain

	in := NewMemQueue()
	out := NewMemQueue()

	c, err := NewCoordinator(ChannelReply, cfg, in, out)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runCoordinator(t, ctx, c)

	for i := 0; i < 10; i++ {
		if err := in.Publish(context.Background(), []byte("x")); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for in.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	cancel()

	if err := waitStopped(t, errCh); err != nil {
		t.Fatalf("run: %v", err)
	}

	if out.Len() != 10 {
		t.Fatalf("drain policy forwarded %d packets, want 10", out.Len())
	}
}

func TestCoordinatorRejectsBadConfig(t *testing.T) {
	testInit()

	cfg := coordinatorConfig()
	cfg.DropProbability = 1.5

	_, err := NewCoordinator(ChannelRequest, cfg, NewMemQueue(), NewMemQueue())
	if err == nil {
		t.Fatal("want error for drop_probability 1.5")
	}
}
