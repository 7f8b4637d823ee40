package circulation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service is the circulation engine: borrow, return, extend and fine preview
// for a single loan. All availability changes go through the Store counter.
type Service struct {
	Store Store
	Log   *zap.Logger
	Now   func() time.Time
}

func NewService(store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Store: store, Log: log, Now: time.Now}
}

type BorrowResult struct {
	Loan            Loan `json:"loan"`
	AvailableCopies int  `json:"available_copies"`
}

type ReturnResult struct {
	Loan            Loan `json:"loan"`
	AvailableCopies int  `json:"available_copies"`
}

// Borrow checks the member is active, freezes book/member snapshots and
// creates the loan; the store decrements availability and inserts the row as
// one unit, so a lost race on the last copy surfaces as ErrOutOfStock.
func (s *Service) Borrow(ctx context.Context, bookID, memberID string, dueDate time.Time) (BorrowResult, error) {
	member, err := s.Store.GetMember(ctx, memberID)
	if err != nil {
		return BorrowResult{}, err
	}
	if member.Status != MemberActive {
		return BorrowResult{}, fmt.Errorf("member %s (%s): %w", memberID, member.Status, ErrMemberNotActive)
	}
	book, err := s.Store.GetBook(ctx, bookID)
	if err != nil {
		return BorrowResult{}, err
	}

	loan, err := s.newLoan(book, member, dueDate)
	if err != nil {
		return BorrowResult{}, err
	}
	available, err := s.Store.CreateLoan(ctx, loan)
	if err != nil {
		return BorrowResult{}, err
	}

	s.Log.Info("loan created",
		zap.String("loan_id", loan.ID),
		zap.String("book_id", bookID),
		zap.String("member_id", memberID),
		zap.Time("due_date", dueDate),
		zap.Int("available_copies", available),
	)
	return BorrowResult{Loan: loan, AvailableCopies: available}, nil
}

// BorrowFromReservation creates the loan that follows a fulfilled
// reservation. The copy was already committed by the fulfillment decrement,
// so the counter is not touched again.
func (s *Service) BorrowFromReservation(ctx context.Context, r Reservation, dueDate time.Time) (Loan, error) {
	member, err := s.Store.GetMember(ctx, r.MemberID)
	if err != nil {
		return Loan{}, err
	}
	if member.Status != MemberActive {
		return Loan{}, fmt.Errorf("member %s (%s): %w", r.MemberID, member.Status, ErrMemberNotActive)
	}
	book, err := s.Store.GetBook(ctx, r.BookID)
	if err != nil {
		return Loan{}, err
	}

	loan, err := s.newLoan(book, member, dueDate)
	if err != nil {
		return Loan{}, err
	}
	if err := s.Store.InsertLoan(ctx, loan); err != nil {
		return Loan{}, err
	}

	s.Log.Info("loan created from reservation",
		zap.String("loan_id", loan.ID),
		zap.String("reservation_id", r.ID),
		zap.String("member_id", r.MemberID),
	)
	return loan, nil
}

func (s *Service) newLoan(book Book, member Member, dueDate time.Time) (Loan, error) {
	bookSnap, err := SnapshotBook(book)
	if err != nil {
		return Loan{}, err
	}
	memberSnap, err := SnapshotMember(member)
	if err != nil {
		return Loan{}, err
	}
	now := s.Now()
	return Loan{
		ID:         uuid.NewString(),
		BookID:     book.ID,
		MemberID:   member.ID,
		Book:       bookSnap,
		Member:     memberSnap,
		BorrowDate: now,
		DueDate:    dueDate,
		Status:     LoanBorrowed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Return closes a loan: sets the return date, computes the fine from the
// dates and reported condition, and increments availability exactly once.
// A second return of the same loan fails with ErrAlreadyReturned.
func (s *Service) Return(ctx context.Context, loanID string, returnDate time.Time, condition string) (ReturnResult, error) {
	loan, err := s.Store.GetLoan(ctx, loanID)
	if err != nil {
		return ReturnResult{}, err
	}
	if loan.Returned() {
		return ReturnResult{}, fmt.Errorf("loan %s: %w", loanID, ErrAlreadyReturned)
	}

	loan.ReturnDate = &returnDate
	loan.Condition = condition
	loan.Fine = Fine(loan.DueDate, returnDate, condition)
	loan.Status = LoanReturned
	loan.UpdatedAt = s.Now()

	available, err := s.Store.FinishLoan(ctx, loan)
	if err != nil {
		return ReturnResult{}, err
	}

	s.Log.Info("loan returned",
		zap.String("loan_id", loanID),
		zap.Int("fine", loan.Fine),
		zap.String("condition", condition),
		zap.Int("available_copies", available),
	)
	return ReturnResult{Loan: loan, AvailableCopies: available}, nil
}

// Extend replaces the due date of an open loan. The new date must be strictly
// after the current one.
func (s *Service) Extend(ctx context.Context, loanID string, newDueDate time.Time) (Loan, error) {
	loan, err := s.Store.GetLoan(ctx, loanID)
	if err != nil {
		return Loan{}, err
	}
	if loan.Returned() {
		return Loan{}, fmt.Errorf("loan %s: %w", loanID, ErrAlreadyReturned)
	}
	if !newDueDate.After(loan.DueDate) {
		return Loan{}, fmt.Errorf("loan %s: %w", loanID, ErrInvalidDueDate)
	}
	if err := s.Store.SetLoanDueDate(ctx, loanID, newDueDate); err != nil {
		return Loan{}, err
	}
	loan.DueDate = newDueDate

	s.Log.Info("loan extended", zap.String("loan_id", loanID), zap.Time("due_date", newDueDate))
	return loan, nil
}

// EstimateFine previews the fine a loan would carry if returned at asOf with
// the condition already recorded (none before return). Advisory only: nothing
// is persisted before the actual return, so the value can never go stale.
func (s *Service) EstimateFine(ctx context.Context, loanID string, asOf time.Time) (int, error) {
	loan, err := s.Store.GetLoan(ctx, loanID)
	if err != nil {
		return 0, err
	}
	if loan.Returned() {
		return loan.Fine, nil
	}
	return Fine(loan.DueDate, asOf, loan.Condition), nil
}

// GetLoan returns the loan with its status projected at now, so listings show
// OVERDUE without any stored transition.
func (s *Service) GetLoan(ctx context.Context, loanID string) (Loan, error) {
	loan, err := s.Store.GetLoan(ctx, loanID)
	if err != nil {
		return Loan{}, err
	}
	loan.Status = EffectiveStatus(loan, s.Now())
	return loan, nil
}
