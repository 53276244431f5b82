package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"poolbook/api/grpcserver"
	"poolbook/config"
	"poolbook/domain/orderbook"
	"poolbook/infra/kafka"
	"poolbook/infra/store"
	entrywal "poolbook/infra/wal/entry"
	exitwal "poolbook/infra/wal/exit"
	"poolbook/jobs/broadcaster"
	"poolbook/service"
	"poolbook/telemetry"
)

func main() {
	cfgPath := flag.String("config", "poolbook.yaml", "path to the YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("MAIN: config", "error", err)
		os.Exit(1)
	}
	level, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("MAIN: exiting", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// ---------------- Resting store ----------------

	db, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	// ---------------- Journal ----------------

	journalDir := filepath.Join(cfg.DataDir, "journal")
	journal, err := entrywal.Open(entrywal.Config{
		Dir:             journalDir,
		SegmentSize:     64 << 20,
		SegmentDuration: time.Hour,
	})
	if err != nil {
		return err
	}
	defer journal.Close()

	// ---------------- Outbox ----------------

	outbox, err := exitwal.Open(filepath.Join(cfg.DataDir, "outbox"))
	if err != nil {
		return err
	}
	defer outbox.Close()

	// ---------------- Pools ----------------

	pools, err := cfg.PoolStrategies()
	if err != nil {
		return err
	}
	snapshots, err := service.NewConfigSnapshots(cfg.Pools)
	if err != nil {
		return err
	}

	// ---------------- Service ----------------

	handoff := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.RoundsTopic)
	defer handoff.Close()

	hub := telemetry.NewHub()

	svc, err := service.New(ctx, service.Deps{
		Store:     db,
		Snapshots: snapshots,
		Journal:   journal,
		Outbox:    outbox,
		Auction:   service.NewForwardAuction(handoff),
		Publisher: hub,
	}, pools)
	if err != nil {
		return err
	}
	checkpointDir := filepath.Join(cfg.DataDir, "checkpoint")
	if err := svc.RestoreFromCheckpoint(checkpointDir); err != nil {
		return err
	}
	if err := svc.RestoreFromJournal(journalDir); err != nil {
		return err
	}
	svc.StartCheckpointJob(checkpointDir, cfg.CheckpointInterval, ctx.Done())

	// ---------------- Background jobs ----------------

	producer, err := broadcaster.NewProducer(ctx, cfg.Kafka.Brokers)
	if err != nil {
		return err
	}
	bc := broadcaster.New(outbox, producer, cfg.Kafka.AuditTopic, 250*time.Millisecond)
	defer bc.Close()

	intake := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.OrdersTopic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer intake.Close()

	var wg sync.WaitGroup
	spawn := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
			slog.Info("MAIN: stopped", "job", name)
		}()
	}

	spawn("rounds", func() { svc.Run(ctx, cfg.RoundInterval) })
	spawn("broadcaster", func() { bc.Run(ctx) })
	spawn("telemetry-hub", func() { hub.Run(ctx) })
	spawn("telemetry-http", func() {
		if err := hub.ListenAndServe(ctx, cfg.Telemetry.Addr); err != nil {
			slog.Error("MAIN: telemetry server", "error", err)
		}
	})
	spawn("intake", func() {
		err := intake.Run(ctx, intakeHandler(svc))
		if err != nil {
			slog.Error("MAIN: intake consumer", "error", err)
		}
	})

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return err
	}
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.LoggingInterceptor))
	grpcserver.Register(grpcSrv, grpcserver.NewServer(svc))

	go func() {
		<-ctx.Done()
		grpcSrv.GracefulStop()
	}()

	slog.Info("MAIN: poolbook running", "grpc", cfg.GRPC.Addr, "pools", len(pools))
	err = grpcSrv.Serve(lis)
	wg.Wait()
	return err
}

type orderIntake interface {
	Intake(ctx context.Context, o orderbook.Order) (uint64, error)
}

// intakeHandler drops orders for pools this node does not serve; they
// would fail the same way on every redelivery.
func intakeHandler(svc orderIntake) kafka.OrderHandler {
	return func(ctx context.Context, o orderbook.Order) error {
		_, err := svc.Intake(ctx, o)
		if errors.Is(err, service.ErrUnknownPool) {
			return fmt.Errorf("%w: %w", kafka.ErrSkip, err)
		}
		return err
	}
}
