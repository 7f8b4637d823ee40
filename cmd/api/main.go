package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/minhtranq/library-circulation/internal/circulation"
	"github.com/minhtranq/library-circulation/internal/config"
	"github.com/minhtranq/library-circulation/internal/httpx"
	kafkax "github.com/minhtranq/library-circulation/internal/kafka"
	"github.com/minhtranq/library-circulation/internal/pgstore"
	"github.com/minhtranq/library-circulation/internal/postgres"
	"github.com/minhtranq/library-circulation/internal/redisx"
	"github.com/minhtranq/library-circulation/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	zlog := logger.New(cfg.ServiceName, os.Getenv("LOG_LEVEL"))
	defer func() { _ = zlog.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	store := pgstore.New(db)
	if err := store.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers
	prodCtx, prodCancel := context.WithCancel(context.Background())
	defer prodCancel()
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, circulation.TopicLoanCreated, 1024, zlog)
	pCreated.Start(prodCtx)
	pReturned := kafkax.NewProducer(cfg.KafkaBrokers, circulation.TopicLoanReturned, 1024, zlog)
	pReturned.Start(prodCtx)

	// Services & handlers
	circ := circulation.NewService(store, zlog)
	res := circulation.NewReservationService(store, zlog)

	router := httpx.NewRouter()
	(&httpx.LoansHandler{
		Circulation: circ,
		Created:     pCreated,
		Returned:    pReturned,
		Redis:       rdb,
		Log:         zlog,
		Service:     cfg.ServiceName,
	}).Register(router)
	(&httpx.ReservationsHandler{
		Reservations: res,
		Circulation:  circ,
		Redis:        rdb,
		Log:          zlog,
		Service:      cfg.ServiceName,
	}).Register(router)
	(&httpx.BooksHandler{Circulation: circ, Redis: rdb, Log: zlog}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		zlog.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	zlog.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	// close inboxes -> flush & close writers, then wait for the drain
	pCreated.Close()
	pReturned.Close()
	pCreated.WaitClosed()
	pReturned.WaitClosed()
}
