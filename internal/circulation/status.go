package circulation

import "time"

type LoanStatus string

const (
	LoanBorrowed LoanStatus = "BORROWED"
	LoanReturned LoanStatus = "RETURNED"
	LoanOverdue  LoanStatus = "OVERDUE"
)

// EffectiveStatus projects the loan status at a point in time. Overdue is
// never persisted: the stored column only ever holds BORROWED or RETURNED,
// and listings derive OVERDUE from the dates to avoid a stale status field.
func EffectiveStatus(l Loan, now time.Time) LoanStatus {
	if l.Returned() {
		return LoanReturned
	}
	if now.After(l.DueDate) {
		return LoanOverdue
	}
	return LoanBorrowed
}

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationApproved  ReservationStatus = "approved"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationFulfilled ReservationStatus = "fulfilled"
	ReservationExpired   ReservationStatus = "expired"
)

// validNext is the full transition graph. cancelled covers both member
// cancellation and staff rejection; expired is written only by the sweep.
var validNext = map[ReservationStatus]map[ReservationStatus]bool{
	ReservationPending:   {ReservationApproved: true, ReservationCancelled: true, ReservationExpired: true},
	ReservationApproved:  {ReservationFulfilled: true, ReservationCancelled: true, ReservationExpired: true},
	ReservationCancelled: {},
	ReservationFulfilled: {},
	ReservationExpired:   {},
}

// staffNext is the subset of edges staff may request through UpdateStatus.
var staffNext = map[ReservationStatus]map[ReservationStatus]bool{
	ReservationPending:  {ReservationApproved: true, ReservationCancelled: true},
	ReservationApproved: {ReservationFulfilled: true},
}

func CanTransition(from, to ReservationStatus) bool {
	return validNext[from][to]
}

func CanStaffTransition(from, to ReservationStatus) bool {
	return staffNext[from][to]
}
