// Package memstore is a mutex-guarded in-memory implementation of the
// circulation Store, used by tests and local runs. A single mutex serializes
// every operation, which is the same guarantee the Postgres store gets from
// conditional UPDATEs.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/minhtranq/library-circulation/internal/circulation"
)

type Store struct {
	mu           sync.Mutex
	books        map[string]circulation.Book
	members      map[string]circulation.Member
	loans        map[string]circulation.Loan
	reservations map[string]circulation.Reservation
}

func New() *Store {
	return &Store{
		books:        map[string]circulation.Book{},
		members:      map[string]circulation.Member{},
		loans:        map[string]circulation.Loan{},
		reservations: map[string]circulation.Reservation{},
	}
}

// PutBook and PutMember seed catalog/membership records, which are owned by
// external systems in production.
func (s *Store) PutBook(b circulation.Book) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[b.ID] = b
}

func (s *Store) PutMember(m circulation.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
}

func (s *Store) GetBook(_ context.Context, id string) (circulation.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return circulation.Book{}, fmt.Errorf("book %s: %w", id, circulation.ErrBookNotFound)
	}
	return b, nil
}

func (s *Store) GetMember(_ context.Context, id string) (circulation.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return circulation.Member{}, fmt.Errorf("member %s: %w", id, circulation.ErrMemberNotFound)
	}
	return m, nil
}

// decrement and increment assume s.mu is held.
func (s *Store) decrement(bookID string) (int, error) {
	b, ok := s.books[bookID]
	if !ok {
		return 0, fmt.Errorf("book %s: %w", bookID, circulation.ErrBookNotFound)
	}
	if b.AvailableCopies == 0 {
		return 0, fmt.Errorf("book %s: %w", bookID, circulation.ErrOutOfStock)
	}
	b.AvailableCopies--
	s.books[bookID] = b
	return b.AvailableCopies, nil
}

func (s *Store) increment(bookID string) (int, error) {
	b, ok := s.books[bookID]
	if !ok {
		return 0, fmt.Errorf("book %s: %w", bookID, circulation.ErrBookNotFound)
	}
	if b.AvailableCopies == b.TotalCopies {
		return 0, fmt.Errorf("book %s: %w", bookID, circulation.ErrOverCapacity)
	}
	b.AvailableCopies++
	s.books[bookID] = b
	return b.AvailableCopies, nil
}

func (s *Store) DecrementAvailable(_ context.Context, bookID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decrement(bookID)
}

func (s *Store) IncrementAvailable(_ context.Context, bookID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.increment(bookID)
}

func (s *Store) CreateLoan(_ context.Context, l circulation.Loan) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	available, err := s.decrement(l.BookID)
	if err != nil {
		return 0, err
	}
	s.loans[l.ID] = l
	return available, nil
}

func (s *Store) InsertLoan(_ context.Context, l circulation.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loans[l.ID] = l
	return nil
}

func (s *Store) GetLoan(_ context.Context, id string) (circulation.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[id]
	if !ok {
		return circulation.Loan{}, fmt.Errorf("loan %s: %w", id, circulation.ErrLoanNotFound)
	}
	return l, nil
}

func (s *Store) FinishLoan(_ context.Context, l circulation.Loan) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.loans[l.ID]
	if !ok {
		return 0, fmt.Errorf("loan %s: %w", l.ID, circulation.ErrLoanNotFound)
	}
	if cur.Returned() {
		return 0, fmt.Errorf("loan %s: %w", l.ID, circulation.ErrAlreadyReturned)
	}
	available, err := s.increment(cur.BookID)
	if err != nil {
		return 0, err
	}
	s.loans[l.ID] = l
	return available, nil
}

func (s *Store) SetLoanDueDate(_ context.Context, id string, due time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[id]
	if !ok {
		return fmt.Errorf("loan %s: %w", id, circulation.ErrLoanNotFound)
	}
	if l.Returned() {
		return fmt.Errorf("loan %s: %w", id, circulation.ErrAlreadyReturned)
	}
	l.DueDate = due
	s.loans[id] = l
	return nil
}

func (s *Store) ListOpenLoansDueBefore(_ context.Context, cutoff time.Time) ([]circulation.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []circulation.Loan
	for _, l := range s.loans {
		if !l.Returned() && l.DueDate.Before(cutoff) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func (s *Store) CreateReservation(_ context.Context, r circulation.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[r.ID] = r
	return nil
}

func (s *Store) GetReservation(_ context.Context, id string) (circulation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return circulation.Reservation{}, fmt.Errorf("reservation %s: %w", id, circulation.ErrReservationNotFound)
	}
	return r, nil
}

func (s *Store) TransitionReservation(_ context.Context, id string, from []circulation.ReservationStatus, to circulation.ReservationStatus) (circulation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(id, from, to)
}

// transition assumes s.mu is held.
func (s *Store) transition(id string, from []circulation.ReservationStatus, to circulation.ReservationStatus) (circulation.Reservation, error) {
	r, ok := s.reservations[id]
	if !ok {
		return circulation.Reservation{}, fmt.Errorf("reservation %s: %w", id, circulation.ErrReservationNotFound)
	}
	allowed := false
	for _, f := range from {
		if r.Status == f {
			allowed = true
			break
		}
	}
	if !allowed || !circulation.CanTransition(r.Status, to) {
		return circulation.Reservation{}, fmt.Errorf("reservation %s: %s -> %s: %w",
			id, r.Status, to, circulation.ErrInvalidTransition)
	}
	r.Status = to
	s.reservations[id] = r
	return r, nil
}

func (s *Store) FulfillReservation(_ context.Context, id string) (circulation.Reservation, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.transition(id, []circulation.ReservationStatus{circulation.ReservationApproved}, circulation.ReservationFulfilled)
	if err != nil {
		return circulation.Reservation{}, 0, err
	}
	available, err := s.decrement(r.BookID)
	if err != nil {
		// roll the status write back so a failed hand-over leaves no trace
		r.Status = circulation.ReservationApproved
		s.reservations[id] = r
		return circulation.Reservation{}, 0, err
	}
	return r, available, nil
}

func (s *Store) ExpireReservationsBefore(_ context.Context, cutoff time.Time) ([]circulation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []circulation.Reservation
	for id, r := range s.reservations {
		if (r.Status == circulation.ReservationPending || r.Status == circulation.ReservationApproved) &&
			r.ExpiryDate.Before(cutoff) {
			r.Status = circulation.ReservationExpired
			s.reservations[id] = r
			expired = append(expired, r)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ExpiryDate.Before(expired[j].ExpiryDate) })
	return expired, nil
}
