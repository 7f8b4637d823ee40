package circulation

import (
	"encoding/json"
	"time"
)

const (
	EventLoanCreated        = "LoanCreated"
	EventLoanReturned       = "LoanReturned"
	EventDueReminder        = "DueReminder"
	EventOverdueNotice      = "OverdueNotice"
	EventReservationExpired = "ReservationExpired"
)

// Envelope wraps every published event. Payload is type-specific JSON keyed
// by EventType.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type LoanCreatedPayload struct {
	LoanID          string         `json:"loan_id"`
	BookID          string         `json:"book_id"`
	MemberID        string         `json:"member_id"`
	DueDate         time.Time      `json:"due_date"`
	Book            BookSnapshot   `json:"book"`
	Member          MemberSnapshot `json:"member"`
	AvailableCopies int            `json:"available_copies"`
}

type LoanReturnedPayload struct {
	LoanID          string    `json:"loan_id"`
	BookID          string    `json:"book_id"`
	ReturnDate      time.Time `json:"return_date"`
	Condition       string    `json:"condition,omitempty"`
	Fine            int       `json:"fine"`
	AvailableCopies int       `json:"available_copies"`
}

// DueReminderPayload carries snapshot data so the delivery collaborator can
// compose the message without reading live book/member records.
type DueReminderPayload struct {
	LoanID  string         `json:"loan_id"`
	DueDate time.Time      `json:"due_date"`
	Book    BookSnapshot   `json:"book"`
	Member  MemberSnapshot `json:"member"`
}

type OverdueNoticePayload struct {
	LoanID      string         `json:"loan_id"`
	DueDate     time.Time      `json:"due_date"`
	DaysLate    int            `json:"days_late"`
	AccruedFine int            `json:"accrued_fine"` // advisory, not persisted
	Book        BookSnapshot   `json:"book"`
	Member      MemberSnapshot `json:"member"`
}

type ReservationExpiredPayload struct {
	ReservationID string    `json:"reservation_id"`
	BookID        string    `json:"book_id"`
	MemberID      string    `json:"member_id"`
	ExpiryDate    time.Time `json:"expiry_date"`
}
