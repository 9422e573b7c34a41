package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-washbay-booking.git/internal/availability"
	"github.com/ariefcatur/go-washbay-booking.git/internal/booking"
	"github.com/ariefcatur/go-washbay-booking.git/internal/catalog"
	"github.com/ariefcatur/go-washbay-booking.git/internal/config"
	"github.com/ariefcatur/go-washbay-booking.git/internal/events"
	"github.com/ariefcatur/go-washbay-booking.git/internal/httpx"
	"github.com/ariefcatur/go-washbay-booking.git/internal/postgres"
	"github.com/ariefcatur/go-washbay-booking.git/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("db schema: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Event bus: everything the API can cause
	bus := events.NewBus(cfg.KafkaBrokers, cfg.ServiceName,
		booking.EventBookingHeld,
		booking.EventBookingConfirmed,
		booking.EventBookingCancelled,
		booking.EventBookingExpired,
	)
	bus.Start(ctx)

	// Allocator over the durable ledger; index rebuilt from it
	cat := catalog.Default()
	ledger := &postgres.Ledger{DB: db}
	alloc := booking.NewAllocator(cat, ledger, availability.New())
	alloc.HoldTTL = cfg.HoldTTL
	alloc.MinLead = cfg.MinLead
	alloc.OnExpired = func(r *booking.Reservation) {
		bus.Emit(booking.EventBookingExpired, r, "")
	}
	if err := alloc.Rebuild(ctx); err != nil {
		log.Fatalf("rebuild: %v", err)
	}

	router := httpx.NewRouter()
	auth := &httpx.Auth{Secret: []byte(cfg.JWTSecret)}
	bh := &httpx.BookingHandler{
		Alloc:   alloc,
		Ledger:  ledger,
		Catalog: cat,
		Bus:     bus,
		Redis:   rdb,
		Service: cfg.ServiceName,
	}
	bh.Register(router, auth)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	bus.Close()      // close inboxes -> flush & close writers
	cancel()         // stop producer loops
	bus.WaitClosed() // drain
}
