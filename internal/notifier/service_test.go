package notifier

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/minhtranq/library-circulation/internal/circulation"
	kafkax "github.com/minhtranq/library-circulation/internal/kafka"
	"github.com/minhtranq/library-circulation/internal/memstore"
)

type seededState struct {
	circ *circulation.Service
	res  *circulation.ReservationService

	dueSoonLoanID      string
	overdueLoanID      string
	staleReservationID string
}

// newSeededState builds a store holding one loan due in two days, one loan
// two days overdue and one reservation already past its expiry window.
func newSeededState(t *testing.T) *seededState {
	t.Helper()
	store := memstore.New()
	now := day(2024, time.April, 10)

	circ := circulation.NewService(store, nil)
	circ.Now = func() time.Time { return now }
	res := circulation.NewReservationService(store, nil)
	res.Now = func() time.Time { return now }

	store.PutBook(circulation.Book{
		ID: "b1", Code: "NV-001", Title: "Nhà Giả Kim", Author: "Paulo Coelho",
		TotalCopies: 5, AvailableCopies: 5,
	})
	store.PutMember(circulation.Member{
		ID: "m1", Code: "TV-001", Name: "Trần Văn An", Email: "an@example.com",
		Status: circulation.MemberActive,
	})

	ctx := context.Background()
	dueSoon, err := circ.Borrow(ctx, "b1", "m1", day(2024, time.April, 12))
	require.NoError(t, err)
	overdue, err := circ.Borrow(ctx, "b1", "m1", day(2024, time.April, 8))
	require.NoError(t, err)

	// place the hold a week back so its three-day window is already over
	res.Now = func() time.Time { return day(2024, time.April, 3) }
	stale, err := res.Reserve(ctx, "b1", "m1", "")
	require.NoError(t, err)
	res.Now = func() time.Time { return now }

	return &seededState{
		circ:               circ,
		res:                res,
		dueSoonLoanID:      dueSoon.Loan.ID,
		overdueLoanID:      overdue.Loan.ID,
		staleReservationID: stale.ID,
	}
}

type capturingPublisher struct {
	envelopes []circulation.Envelope
}

func (p *capturingPublisher) Publish(_, value []byte, _ ...kafkago.Header) {
	var ev circulation.Envelope
	if err := json.Unmarshal(value, &ev); err != nil {
		panic(err)
	}
	p.envelopes = append(p.envelopes, ev)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestService(t *testing.T) (*Service, *seededState) {
	t.Helper()
	state := newSeededState(t)

	svc := &Service{
		Circulation:  state.circ,
		Reservations: state.res,
		Reminder:     &capturingPublisher{},
		Overdue:      &capturingPublisher{},
		Expired:      &capturingPublisher{},
		Log:          zap.NewNop(),
		ServiceName:  "test-notifier",
		WindowDays:   3,
	}
	return svc, state
}

func Test_Sweep(t *testing.T) {
	svc, state := newTestService(t)

	require.NoError(t, svc.Sweep(context.Background()))

	reminders := svc.Reminder.(*capturingPublisher).envelopes
	require.Len(t, reminders, 1)
	assert.Equal(t, circulation.EventDueReminder, reminders[0].EventType)
	rp, err := kafkax.UnwrapPayload[circulation.DueReminderPayload](reminders[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, state.dueSoonLoanID, rp.LoanID)
	assert.Equal(t, "an@example.com", rp.Member.Email)

	overdues := svc.Overdue.(*capturingPublisher).envelopes
	require.Len(t, overdues, 1)
	op, err := kafkax.UnwrapPayload[circulation.OverdueNoticePayload](overdues[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, state.overdueLoanID, op.LoanID)
	assert.Equal(t, 2, op.DaysLate)
	assert.Equal(t, 10000, op.AccruedFine)

	expirations := svc.Expired.(*capturingPublisher).envelopes
	require.Len(t, expirations, 1)
	ep, err := kafkax.UnwrapPayload[circulation.ReservationExpiredPayload](expirations[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, state.staleReservationID, ep.ReservationID)
}

// A second pass republishes reminders (dedup is Redis's job and there is no
// Redis here) but expires nothing further: the status write already happened.
func Test_Sweep_ExpiryIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Sweep(ctx))
	require.NoError(t, svc.Sweep(ctx))

	expirations := svc.Expired.(*capturingPublisher).envelopes
	assert.Len(t, expirations, 1)
}
