package circulation

import (
	"context"
	"time"
)

// DefaultReminderWindowDays is how far ahead due-soon listings look.
const DefaultReminderWindowDays = 3

// OverdueLoan pairs an open overdue loan with its advisory accrued fine.
// The fine is computed on read and never written back; the persisted fine is
// set only at return time.
type OverdueLoan struct {
	Loan        Loan `json:"loan"`
	DaysLate    int  `json:"days_late"`
	AccruedFine int  `json:"accrued_fine"`
}

// ListUpcomingDue returns open loans due within the window (overdue ones
// included). Read-only; each loan carries its snapshots so the notification
// collaborator can compose messages without touching live records.
func (s *Service) ListUpcomingDue(ctx context.Context, withinDays int) ([]Loan, error) {
	if withinDays <= 0 {
		withinDays = DefaultReminderWindowDays
	}
	now := s.Now()
	cutoff := now.Add(time.Duration(withinDays) * 24 * time.Hour)
	loans, err := s.Store.ListOpenLoansDueBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	for i := range loans {
		loans[i].Status = EffectiveStatus(loans[i], now)
	}
	return loans, nil
}

// ListOverdue returns open loans past their due date with the fine accrued
// so far.
func (s *Service) ListOverdue(ctx context.Context) ([]OverdueLoan, error) {
	now := s.Now()
	loans, err := s.Store.ListOpenLoansDueBefore(ctx, now)
	if err != nil {
		return nil, err
	}
	out := make([]OverdueLoan, 0, len(loans))
	for _, l := range loans {
		if !now.After(l.DueDate) {
			continue
		}
		l.Status = LoanOverdue
		days := DaysLate(l.DueDate, now)
		out = append(out, OverdueLoan{Loan: l, DaysLate: days, AccruedFine: days * FinePerDay})
	}
	return out, nil
}
