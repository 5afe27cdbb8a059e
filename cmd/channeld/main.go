// -*- tab-width:2 -*-

// Package main runs the channel processor daemon: one impairment
// pipeline per direction (request, reply) between a RabbitMQ queue
// pair and its after-channel counterpart.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // for profiling
	"os"
	"os/signal"
	"sync"
	"syscall"

	count "github.com/jayalane/go-counter"
	ll "github.com/jayalane/go-lll"
	netchan "github.com/marc-richter/go-netchan"
)

const pprofAddr = ":6060"

func main() {
	configPath := flag.String("config", "channel.yml", "path to channel config")
	amqpURL := flag.String("amqp", "", "broker URL (default from config defaults)")
	loopback := flag.Bool("loopback", false, "run with in-memory queues, no broker")
	flag.Parse()

	// Start pprof server for profiling.
	go func() {
		fmt.Println(http.ListenAndServe(pprofAddr, nil)) //nolint:gosec
	}()

	ll.SetWriter(os.Stdout)
	count.InitCounters()
	count.SetResolution(count.HighRes)

	netchan.Init()

	cfg, err := netchan.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *amqpURL, *loopback); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	count.LogCounters()
}

// channelQueues maps each direction onto its broker queue pair.
var channelQueues = []struct {
	id      netchan.ChannelID
	ingress string
	egress  string
}{
	{netchan.ChannelRequest, netchan.RequestQueue, netchan.RequestQueueAfterChannel},
	{netchan.ChannelReply, netchan.ReplyQueue, netchan.ReplyQueueAfterChannel},
}

func run(ctx context.Context, cfg *netchan.Config, amqpURL string, loopback bool) error {
	coordinators := make([]*netchan.Coordinator, 0, len(channelQueues))

	if loopback {
		// Smoke-test mode: each channel reads and writes an
		// in-memory queue pair instead of the broker.
		for _, cq := range channelQueues {
			co, err := netchan.NewCoordinator(cq.id, cfg.Channel(cq.id),
				netchan.NewMemQueue(), netchan.NewMemQueue())
			if err != nil {
				return err
			}

			coordinators = append(coordinators, co)
		}
	} else {
		acfg := netchan.DefaultAMQPConfig()
		if amqpURL != "" {
			acfg.URL = amqpURL
		}

		client, err := netchan.DialAMQP(acfg)
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.DeclareQueues(netchan.RequestQueue,
			netchan.RequestQueueAfterChannel, netchan.ReplyQueue,
			netchan.ReplyQueueAfterChannel); err != nil {
			return err
		}

		for _, cq := range channelQueues {
			in, err := client.Receiver(cq.ingress)
			if err != nil {
				return err
			}

			out, err := client.Publisher(cq.egress)
			if err != nil {
				return err
			}

			co, err := netchan.NewCoordinator(cq.id, cfg.Channel(cq.id), in, out)
			if err != nil {
				return err
			}

			coordinators = append(coordinators, co)
		}
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, co := range coordinators {
		wg.Add(1)

		go func(co *netchan.Coordinator) {
			defer wg.Done()

			if err := co.Run(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(co)
	}

	wg.Wait()

	if len(errs) > 0 {
		return errs[0]
	}

	return nil
}
