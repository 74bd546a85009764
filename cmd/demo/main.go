// Package main runs an order-fulfillment saga demo.
//
// It reads config from flags/env, drives simulated orders through a
// coordinator backed by the configured store and prints notifications.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/comalice/sagax/internal/core"
	"github.com/comalice/sagax/internal/extensibility"
	"github.com/comalice/sagax/internal/production"
)

func main() {
	cfg, err := ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		log.Fatalf("demo failed: %v", err)
	}
}

func openRepository(cfg Config) (core.Repository[*Order], func() error, error) {
	noop := func() error { return nil }
	switch cfg.Store {
	case "json":
		repo, err := production.NewJSONRepository[*Order](cfg.StorePath)
		return repo, noop, err
	case "yaml":
		repo, err := production.NewYAMLRepository[*Order](cfg.StorePath)
		return repo, noop, err
	default:
		if err := os.MkdirAll(cfg.StorePath, 0o755); err != nil {
			return nil, noop, fmt.Errorf("mkdir %s: %w", cfg.StorePath, err)
		}
		repo, err := production.OpenSQLiteRepository[*Order](filepath.Join(cfg.StorePath, "sagas.db"))
		if err != nil {
			return nil, noop, err
		}
		return repo, repo.Close, nil
	}
}

func run(ctx context.Context, cfg Config, stdout, stderr io.Writer) (err error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	tp, shutdown, err := setupTracing(ctx, cfg)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		err = errors.Join(err, shutdown(context.Background()))
	}()

	saga := fulfillmentSaga(logger)
	registry, err := saga.Registry()
	if err != nil {
		return err
	}

	repo, closeRepo, err := openRepository(cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	defer func() {
		err = errors.Join(err, closeRepo())
	}()

	notes := make(chan core.Notification, 64)
	publisher := production.NewChannelPublisher(notes)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for n := range notes {
			if n.Kind == core.KindEnd {
				fmt.Fprintf(stdout, "%s  end\n", n.InstanceID)
				continue
			}
			fmt.Fprintf(stdout, "%s  %s -> %s\n", n.InstanceID, n.From, n.To)
		}
	}()

	runner := production.NewTracingRunner(tp, extensibility.NewLoggingRunner(nil, logger))
	coordinator, err := production.NewCoordinator(registry, repo, correlateOrder, func() *Order { return &Order{} },
		production.WithLogger(logger),
		production.WithTracerProvider(tp),
		production.WithParallelism(cfg.Workers),
		production.WithEngineOptions(
			core.WithLogger(logger),
			core.WithRunner(runner),
			core.WithObserver(publisher),
			core.WithObserver(production.TracingObserver{}),
		),
		production.WithErrorHandler(func(evt core.Event, err error) {
			fmt.Fprintf(stdout, "delivery of %s failed: %v\n", evt.Type, err)
		}),
	)
	if err != nil {
		return err
	}

	events := orderEvents(cfg.Orders)
	source := extensibility.NewChannelEventSource(make(chan core.Event, len(events)))
	for _, evt := range events {
		source.Publish(evt)
	}
	source.Close()

	runErr := coordinator.Run(ctx, source)
	_ = publisher.Close()
	<-printed
	if runErr != nil {
		return runErr
	}

	recs, err := repo.LoadAll(ctx)
	if err != nil {
		return err
	}
	pending := 0
	for _, rec := range recs {
		if !rec.Ended {
			pending++
		}
	}
	fmt.Fprintf(stdout, "\n%d orders pending, %d notifications dropped\n", pending, publisher.Dropped())
	fmt.Fprintln(stdout, "\nDOT:")
	fmt.Fprint(stdout, (&production.DefaultVisualizer{}).ExportDOT(registry.Layout(), core.State("")))
	return nil
}
