package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ariefcatur/go-washbay-booking.git/internal/availability"
	"github.com/ariefcatur/go-washbay-booking.git/internal/booking"
	"github.com/ariefcatur/go-washbay-booking.git/internal/catalog"
	"github.com/ariefcatur/go-washbay-booking.git/internal/config"
	"github.com/ariefcatur/go-washbay-booking.git/internal/events"
	"github.com/ariefcatur/go-washbay-booking.git/internal/expiry"
	kafkax "github.com/ariefcatur/go-washbay-booking.git/internal/kafka"
	"github.com/ariefcatur/go-washbay-booking.git/internal/payments"
	"github.com/ariefcatur/go-washbay-booking.git/internal/postgres"
	"github.com/ariefcatur/go-washbay-booking.git/internal/redisx"
	"github.com/joho/godotenv"
)

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("db schema: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Bus: outcomes this worker can cause
	name := cfg.ServiceName + "-sweeper"
	bus := events.NewBus(cfg.KafkaBrokers, name,
		booking.EventBookingConfirmed,
		booking.EventBookingCancelled,
		booking.EventBookingExpired,
	)
	bus.Start(ctx)

	// Allocator
	ledger := &postgres.Ledger{DB: db}
	alloc := booking.NewAllocator(catalog.Default(), ledger, availability.New())
	alloc.HoldTTL = cfg.HoldTTL
	alloc.MinLead = cfg.MinLead
	alloc.OnExpired = func(r *booking.Reservation) {
		bus.Emit(booking.EventBookingExpired, r, "")
	}
	if err := alloc.Rebuild(ctx); err != nil {
		log.Fatalf("rebuild: %v", err)
	}

	// Hold expiry loop
	sw := &expiry.Sweeper{Alloc: alloc, Interval: cfg.SweepInterval}
	go func() {
		if err := sw.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("sweeper exit: %v", err)
			cancel()
		}
	}()

	// Payment collaborator consumers
	svc := &payments.Service{Alloc: alloc, Redis: rdb, Bus: bus, Name: name}
	group := getenv("PAYMENTS_GROUP", "washbay-sweeper")
	workers := mustAtoi(os.Getenv("PAYMENTS_WORKERS"), "4")

	consOK := kafkax.NewConsumer(cfg.KafkaBrokers, group, booking.TopicPaymentAuthorized, workers)
	go func() {
		log.Printf("payments consumer started: group=%s topic=%s workers=%d", group, booking.TopicPaymentAuthorized, workers)
		if err := consOK.Start(ctx, svc.HandleAuthorized); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()
	consKO := kafkax.NewConsumer(cfg.KafkaBrokers, group, booking.TopicPaymentFailed, workers)
	go func() {
		log.Printf("payments consumer started: group=%s topic=%s workers=%d", group, booking.TopicPaymentFailed, workers)
		if err := consKO.Start(ctx, svc.HandleFailed); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down sweeper...")
	cancel()
	time.Sleep(500 * time.Millisecond)
	bus.Close()
	bus.WaitClosed()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
