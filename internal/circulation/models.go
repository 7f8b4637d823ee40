package circulation

import "time"

type MembershipStatus string

const (
	MemberActive    MembershipStatus = "active"
	MemberSuspended MembershipStatus = "suspended"
	MemberLocked    MembershipStatus = "locked"
)

// Book is a catalog title. AvailableCopies is mutated only through the
// Store counter operations, never assigned directly.
type Book struct {
	ID              string    `json:"id"`
	Code            string    `json:"code"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn"`
	Category        string    `json:"category"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Member records are owned by the membership system; the engine only reads
// them to gate borrow/reserve and to freeze snapshots.
type Member struct {
	ID     string           `json:"id"`
	Code   string           `json:"code"`
	Name   string           `json:"name"`
	Email  string           `json:"email"`
	Status MembershipStatus `json:"status"`
	Type   string           `json:"type"`
}

// BookSnapshot and MemberSnapshot are value copies frozen at borrow time so
// loan history stays readable after the live record is edited or deleted.
type BookSnapshot struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Code   string `json:"code"`
}

type MemberSnapshot struct {
	Name  string `json:"name"`
	Code  string `json:"code"`
	Email string `json:"email"`
}

// Loan is one checkout event. Loans are never deleted; they are the audit
// trail of circulation.
type Loan struct {
	ID         string         `json:"id"`
	BookID     string         `json:"book_id"`
	MemberID   string         `json:"member_id"`
	Book       BookSnapshot   `json:"book"`
	Member     MemberSnapshot `json:"member"`
	BorrowDate time.Time      `json:"borrow_date"`
	DueDate    time.Time      `json:"due_date"`
	ReturnDate *time.Time     `json:"return_date,omitempty"`
	Status     LoanStatus     `json:"status"`
	Fine       int            `json:"fine"`
	Condition  string         `json:"condition,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Returned reports whether the loan is closed. Status and ReturnDate are kept
// in lockstep by the store; ReturnDate is the source of truth.
func (l Loan) Returned() bool { return l.ReturnDate != nil }

// Reservation is a pending claim on a title, typically placed while no copy
// is available. No copy is held until fulfillment.
type Reservation struct {
	ID              string            `json:"id"`
	BookID          string            `json:"book_id"`
	MemberID        string            `json:"member_id"`
	ReservationDate time.Time         `json:"reservation_date"`
	ExpiryDate      time.Time         `json:"expiry_date"`
	Status          ReservationStatus `json:"status"`
	Notes           string            `json:"notes,omitempty"`
}
