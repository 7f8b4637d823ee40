package circulation

import "errors"

// Business-rule rejections. All are expected and recoverable; handlers map
// them to 4xx responses while infrastructure failures stay generic 500s.
var (
	ErrOutOfStock             = errors.New("no copies available")
	ErrOverCapacity           = errors.New("available copies already at total")
	ErrMemberNotActive        = errors.New("member is not active")
	ErrAlreadyReturned        = errors.New("loan already returned")
	ErrLoanNotFound           = errors.New("loan not found")
	ErrReservationNotFound    = errors.New("reservation not found")
	ErrInvalidTransition      = errors.New("invalid reservation status transition")
	ErrInvalidDueDate         = errors.New("new due date must be after the current due date")
	ErrIncompleteSourceRecord = errors.New("source record is missing required fields")
	ErrBookNotFound           = errors.New("book not found")
	ErrMemberNotFound         = errors.New("member not found")
)
