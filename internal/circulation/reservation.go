package circulation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReservationTTL is the hold window: a reservation expires three days after
// it is placed.
const ReservationTTL = 3 * 24 * time.Hour

// ReservationService owns the hold lifecycle. It deliberately never checks
// availability on Reserve: holds are a queuing mechanism and may be placed
// while copies are free. A copy is committed only at fulfillment.
type ReservationService struct {
	Store Store
	Log   *zap.Logger
	Now   func() time.Time
}

func NewReservationService(store Store, log *zap.Logger) *ReservationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReservationService{Store: store, Log: log, Now: time.Now}
}

type ReservationUpdate struct {
	Reservation     Reservation `json:"reservation"`
	AvailableCopies *int        `json:"available_copies,omitempty"`
}

// Reserve places a pending hold for an active member.
func (s *ReservationService) Reserve(ctx context.Context, bookID, memberID, notes string) (Reservation, error) {
	member, err := s.Store.GetMember(ctx, memberID)
	if err != nil {
		return Reservation{}, err
	}
	if member.Status != MemberActive {
		return Reservation{}, fmt.Errorf("member %s (%s): %w", memberID, member.Status, ErrMemberNotActive)
	}
	if _, err := s.Store.GetBook(ctx, bookID); err != nil {
		return Reservation{}, err
	}

	now := s.Now()
	r := Reservation{
		ID:              uuid.NewString(),
		BookID:          bookID,
		MemberID:        memberID,
		ReservationDate: now,
		ExpiryDate:      now.Add(ReservationTTL),
		Status:          ReservationPending,
		Notes:           notes,
	}
	if err := s.Store.CreateReservation(ctx, r); err != nil {
		return Reservation{}, err
	}

	s.Log.Info("reservation placed",
		zap.String("reservation_id", r.ID),
		zap.String("book_id", bookID),
		zap.String("member_id", memberID),
		zap.Time("expiry_date", r.ExpiryDate),
	)
	return r, nil
}

// Cancel terminates a pending or approved hold; any other current status
// fails with ErrInvalidTransition.
func (s *ReservationService) Cancel(ctx context.Context, reservationID string) (Reservation, error) {
	r, err := s.Store.TransitionReservation(ctx, reservationID,
		[]ReservationStatus{ReservationPending, ReservationApproved}, ReservationCancelled)
	if err != nil {
		return Reservation{}, err
	}
	s.Log.Info("reservation cancelled", zap.String("reservation_id", reservationID))
	return r, nil
}

// UpdateStatus applies a staff-driven transition. Allowed edges are
// pending -> approved, pending -> cancelled and approved -> fulfilled only.
// Fulfillment also decrements availability: the copy is handed over here,
// not at reservation time.
func (s *ReservationService) UpdateStatus(ctx context.Context, reservationID string, to ReservationStatus) (ReservationUpdate, error) {
	switch to {
	case ReservationApproved, ReservationCancelled:
		r, err := s.Store.TransitionReservation(ctx, reservationID,
			[]ReservationStatus{ReservationPending}, to)
		if err != nil {
			return ReservationUpdate{}, err
		}
		s.Log.Info("reservation status updated",
			zap.String("reservation_id", reservationID), zap.String("status", string(to)))
		return ReservationUpdate{Reservation: r}, nil

	case ReservationFulfilled:
		r, available, err := s.Store.FulfillReservation(ctx, reservationID)
		if err != nil {
			return ReservationUpdate{}, err
		}
		s.Log.Info("reservation fulfilled",
			zap.String("reservation_id", reservationID), zap.Int("available_copies", available))
		return ReservationUpdate{Reservation: r, AvailableCopies: &available}, nil

	default:
		return ReservationUpdate{}, fmt.Errorf("reservation %s to %s: %w", reservationID, to, ErrInvalidTransition)
	}
}

// ExpireDue moves every pending/approved hold past its expiry date to
// expired. Idempotent: a second sweep finds nothing, and availability is
// never touched because an unfulfilled hold never held a copy.
func (s *ReservationService) ExpireDue(ctx context.Context) ([]Reservation, error) {
	expired, err := s.Store.ExpireReservationsBefore(ctx, s.Now())
	if err != nil {
		return nil, err
	}
	if len(expired) > 0 {
		s.Log.Info("reservations expired", zap.Int("count", len(expired)))
	}
	return expired, nil
}

// Get returns a single reservation.
func (s *ReservationService) Get(ctx context.Context, reservationID string) (Reservation, error) {
	return s.Store.GetReservation(ctx, reservationID)
}
