// Package notifier runs the time-driven side of the engine: the reservation
// expiry sweep and the due-reminder/overdue-notice publication. It only reads
// circulation state and publishes envelopes; delivering e-mail (and de-duping
// actual sends) belongs to the external delivery collaborator consuming the
// topics.
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/minhtranq/library-circulation/internal/circulation"
	kafkax "github.com/minhtranq/library-circulation/internal/kafka"
	"github.com/minhtranq/library-circulation/internal/redisx"
)

// Publisher is what the service needs from a Kafka producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Circulation  *circulation.Service
	Reservations *circulation.ReservationService
	Redis        *redis.Client // optional; dedup is skipped without it
	Reminder     Publisher     // library.loan.due-reminder
	Overdue      Publisher     // library.loan.overdue
	Expired      Publisher     // library.reservation.expired
	Log          *zap.Logger
	ServiceName  string
	WindowDays   int
}

// Run sweeps on the given interval until the context is cancelled. A sweep
// error is logged, not fatal; the next tick retries.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := s.Sweep(ctx); err != nil {
			s.Log.Error("sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep runs one pass: expire stale reservations, then publish reminders and
// overdue notices. Each pass is idempotent: expiry is a conditional write
// and publications are deduped per record per day.
func (s *Service) Sweep(ctx context.Context) error {
	expired, err := s.Reservations.ExpireDue(ctx)
	if err != nil {
		return fmt.Errorf("expire reservations: %w", err)
	}
	for _, r := range expired {
		s.publishExpired(r)
	}

	upcoming, err := s.Circulation.ListUpcomingDue(ctx, s.WindowDays)
	if err != nil {
		return fmt.Errorf("list upcoming due: %w", err)
	}
	for _, l := range upcoming {
		if l.Status == circulation.LoanOverdue {
			continue // handled below with the accrued fine
		}
		if s.alreadyNotified(ctx, "reminder", l.ID) {
			continue
		}
		s.publishReminder(l)
	}

	overdue, err := s.Circulation.ListOverdue(ctx)
	if err != nil {
		return fmt.Errorf("list overdue: %w", err)
	}
	for _, o := range overdue {
		if s.alreadyNotified(ctx, "overdue", o.Loan.ID) {
			continue
		}
		s.publishOverdue(o)
	}
	return nil
}

// alreadyNotified marks and checks the per-day dedup key. On any Redis error
// the notice is published anyway; a duplicate beats a silent miss.
func (s *Service) alreadyNotified(ctx context.Context, kind, id string) bool {
	if s.Redis == nil {
		return false
	}
	key := fmt.Sprintf(redisx.KeyNotifyDedup, kind, id, time.Now().UTC().Format("2006-01-02"))
	ok, err := s.Redis.SetNX(ctx, key, "1", redisx.TTLNotifyDedup).Result()
	if err != nil {
		s.Log.Warn("notify dedup check failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return !ok
}

func (s *Service) publishReminder(l circulation.Loan) {
	if s.Reminder == nil {
		return
	}
	s.publish(s.Reminder, circulation.EventDueReminder, l.ID, circulation.DueReminderPayload{
		LoanID:  l.ID,
		DueDate: l.DueDate,
		Book:    l.Book,
		Member:  l.Member,
	})
	s.Log.Info("due reminder published", zap.String("loan_id", l.ID), zap.Time("due_date", l.DueDate))
}

func (s *Service) publishOverdue(o circulation.OverdueLoan) {
	if s.Overdue == nil {
		return
	}
	s.publish(s.Overdue, circulation.EventOverdueNotice, o.Loan.ID, circulation.OverdueNoticePayload{
		LoanID:      o.Loan.ID,
		DueDate:     o.Loan.DueDate,
		DaysLate:    o.DaysLate,
		AccruedFine: o.AccruedFine,
		Book:        o.Loan.Book,
		Member:      o.Loan.Member,
	})
	s.Log.Info("overdue notice published",
		zap.String("loan_id", o.Loan.ID), zap.Int("days_late", o.DaysLate), zap.Int("accrued_fine", o.AccruedFine))
}

func (s *Service) publishExpired(r circulation.Reservation) {
	if s.Expired == nil {
		return
	}
	s.publish(s.Expired, circulation.EventReservationExpired, r.ID, circulation.ReservationExpiredPayload{
		ReservationID: r.ID,
		BookID:        r.BookID,
		MemberID:      r.MemberID,
		ExpiryDate:    r.ExpiryDate,
	})
	s.Log.Info("reservation expiry published", zap.String("reservation_id", r.ID))
}

func (s *Service) publish(p Publisher, eventType, correlationID string, payload any) {
	ev := circulation.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(circulation.PartitionKey(correlationID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
