package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/minhtranq/library-circulation/internal/circulation"
	"github.com/minhtranq/library-circulation/internal/config"
	kafkax "github.com/minhtranq/library-circulation/internal/kafka"
	"github.com/minhtranq/library-circulation/internal/notifier"
	"github.com/minhtranq/library-circulation/internal/pgstore"
	"github.com/minhtranq/library-circulation/internal/postgres"
	"github.com/minhtranq/library-circulation/internal/redisx"
	"github.com/minhtranq/library-circulation/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	zlog := logger.New(cfg.ServiceName+"-notifier", os.Getenv("LOG_LEVEL"))
	defer func() { _ = zlog.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	store := pgstore.New(db)

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prodCtx, prodCancel := context.WithCancel(context.Background())
	defer prodCancel()
	pReminder := kafkax.NewProducer(cfg.KafkaBrokers, circulation.TopicDueReminder, 1024, zlog)
	pReminder.Start(prodCtx)
	pOverdue := kafkax.NewProducer(cfg.KafkaBrokers, circulation.TopicOverdueNotice, 1024, zlog)
	pOverdue.Start(prodCtx)
	pExpired := kafkax.NewProducer(cfg.KafkaBrokers, circulation.TopicReservationExpired, 1024, zlog)
	pExpired.Start(prodCtx)

	svc := &notifier.Service{
		Circulation:  circulation.NewService(store, zlog),
		Reservations: circulation.NewReservationService(store, zlog),
		Redis:        rdb,
		Reminder:     pReminder,
		Overdue:      pOverdue,
		Expired:      pExpired,
		Log:          zlog,
		ServiceName:  cfg.ServiceName + "-notifier",
		WindowDays:   cfg.ReminderWindowDays,
	}

	go func() {
		zlog.Info("notifier started",
			zap.Duration("interval", cfg.SweepInterval),
			zap.Int("window_days", cfg.ReminderWindowDays))
		svc.Run(ctx, cfg.SweepInterval)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	zlog.Info("shutting down")
	cancel()

	pReminder.Close()
	pOverdue.Close()
	pExpired.Close()
	pReminder.WaitClosed()
	pOverdue.WaitClosed()
	pExpired.WaitClosed()
}
