package circulation

import (
	"context"
	"time"
)

// Store is the persistence port of the engine. Implementations must make the
// multi-step operations atomic: two concurrent borrows of the last copy must
// yield exactly one success, and a double return must increment availability
// exactly once. internal/pgstore implements it with conditional UPDATEs,
// internal/memstore with a mutex for tests and local runs.
type Store interface {
	GetBook(ctx context.Context, id string) (Book, error)
	GetMember(ctx context.Context, id string) (Member, error)

	// Inventory counter. DecrementAvailable fails with ErrOutOfStock at zero;
	// IncrementAvailable fails with ErrOverCapacity at total. Both return the
	// new available count.
	DecrementAvailable(ctx context.Context, bookID string) (int, error)
	IncrementAvailable(ctx context.Context, bookID string) (int, error)

	// CreateLoan decrements availability and inserts the loan in one unit.
	CreateLoan(ctx context.Context, l Loan) (available int, err error)
	// InsertLoan inserts without touching the counter, for loans created at
	// reservation fulfillment where the copy was already committed.
	InsertLoan(ctx context.Context, l Loan) error
	GetLoan(ctx context.Context, id string) (Loan, error)
	// FinishLoan closes an open loan (return date, condition, fine, status)
	// and increments availability. Fails with ErrAlreadyReturned if the loan
	// was closed concurrently.
	FinishLoan(ctx context.Context, l Loan) (available int, err error)
	// SetLoanDueDate replaces the due date of an open loan.
	SetLoanDueDate(ctx context.Context, id string, due time.Time) error
	// ListOpenLoansDueBefore returns unreturned loans with due date before
	// cutoff, ordered by due date.
	ListOpenLoansDueBefore(ctx context.Context, cutoff time.Time) ([]Loan, error)

	CreateReservation(ctx context.Context, r Reservation) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	// TransitionReservation moves a reservation to `to` only if its current
	// status is in `from`; otherwise ErrInvalidTransition. This conditional
	// write is what keeps the sweep and staff updates from racing.
	TransitionReservation(ctx context.Context, id string, from []ReservationStatus, to ReservationStatus) (Reservation, error)
	// FulfillReservation is the approved -> fulfilled edge plus the availability
	// decrement, as one unit. The copy is handed over at fulfillment.
	FulfillReservation(ctx context.Context, id string) (Reservation, int, error)
	// ExpireReservationsBefore moves every pending/approved reservation whose
	// expiry date is before cutoff to expired and returns them. Availability
	// is untouched; no copy was ever held. Safe to run repeatedly.
	ExpireReservationsBefore(ctx context.Context, cutoff time.Time) ([]Reservation, error)
}
