package circulation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhtranq/library-circulation/internal/circulation"
	"github.com/minhtranq/library-circulation/internal/memstore"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	store *memstore.Store
	circ  *circulation.Service
	res   *circulation.ReservationService
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memstore.New(), now: day(2024, time.January, 1)}
	f.circ = circulation.NewService(f.store, nil)
	f.res = circulation.NewReservationService(f.store, nil)
	f.circ.Now = func() time.Time { return f.now }
	f.res.Now = func() time.Time { return f.now }

	f.store.PutBook(circulation.Book{
		ID: "b1", Code: "NV-001", Title: "Nhà Giả Kim", Author: "Paulo Coelho",
		TotalCopies: 2, AvailableCopies: 2,
	})
	f.store.PutMember(circulation.Member{
		ID: "m1", Code: "TV-001", Name: "Trần Văn An", Email: "an@example.com",
		Status: circulation.MemberActive,
	})
	f.store.PutMember(circulation.Member{
		ID: "m2", Code: "TV-002", Name: "Lê Thị Bình", Email: "binh@example.com",
		Status: circulation.MemberSuspended,
	})
	return f
}

func (f *fixture) available(t *testing.T, bookID string) int {
	t.Helper()
	b, err := f.store.GetBook(context.Background(), bookID)
	require.NoError(t, err)
	return b.AvailableCopies
}

func Test_Borrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.circ.Borrow(ctx, "b1", "m1", day(2024, time.January, 15))
	require.NoError(t, err)

	assert.Equal(t, 1, res.AvailableCopies)
	assert.Equal(t, circulation.LoanBorrowed, res.Loan.Status)
	assert.Equal(t, "Nhà Giả Kim", res.Loan.Book.Title)
	assert.Equal(t, "an@example.com", res.Loan.Member.Email)
	assert.Nil(t, res.Loan.ReturnDate)
	assert.Equal(t, 1, f.available(t, "b1"))
}

func Test_Borrow_SnapshotSurvivesBookEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.circ.Borrow(ctx, "b1", "m1", day(2024, time.January, 15))
	require.NoError(t, err)

	// catalog edits the title after the loan was created
	f.store.PutBook(circulation.Book{
		ID: "b1", Code: "NV-001", Title: "renamed", Author: "someone else",
		TotalCopies: 2, AvailableCopies: 1,
	})

	loan, err := f.circ.GetLoan(ctx, res.Loan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nhà Giả Kim", loan.Book.Title)
	assert.Equal(t, "Paulo Coelho", loan.Book.Author)
}

func Test_Borrow_MemberNotActive(t *testing.T) {
	f := newFixture(t)

	_, err := f.circ.Borrow(context.Background(), "b1", "m2", day(2024, time.January, 15))
	assert.ErrorIs(t, err, circulation.ErrMemberNotActive)
	assert.Equal(t, 2, f.available(t, "b1"))
}

func Test_Borrow_OutOfStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.circ.Borrow(ctx, "b1", "m1", day(2024, time.January, 15))
	require.NoError(t, err)
	_, err = f.circ.Borrow(ctx, "b1", "m1", day(2024, time.January, 15))
	require.NoError(t, err)

	_, err = f.circ.Borrow(ctx, "b1", "m1", day(2024, time.January, 15))
	assert.ErrorIs(t, err, circulation.ErrOutOfStock)
	assert.Equal(t, 0, f.available(t, "b1"))
}

func Test_Borrow_UnknownMemberAndBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.circ.Borrow(ctx, "b1", "ghost", day(2024, time.January, 15))
	assert.ErrorIs(t, err, circulation.ErrMemberNotFound)

	_, err = f.circ.Borrow(ctx, "ghost", "m1", day(2024, time.January, 15))
	assert.ErrorIs(t, err, circulation.ErrBookNotFound)
}

// N concurrent borrows against the last copy: exactly one may win.
func Test_Borrow_ConcurrentLastCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.circ.Borrow(ctx, "b1", "m1", day(2024, time.January, 15))
	require.NoError(t, err)
	require.Equal(t, 1, f.available(t, "b1"))

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.circ.Borrow(ctx, "b1", "m1", day(2024, time.January, 15))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, circulation.ErrOutOfStock)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 0, f.available(t, "b1"))
}

func Test_Return(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.circ.Borrow(ctx, "b1", "m1", day(2024, time.January, 1))
	require.NoError(t, err)

	ret, err := f.circ.Return(ctx, res.Loan.ID, day(2024, time.January, 4), "Tốt")
	require.NoError(t, err)

	assert.Equal(t, circulation.LoanReturned, ret.Loan.Status)
	assert.Equal(t, 15000, ret.Loan.Fine) // 3 days x 5000
	require.NotNil(t, ret.Loan.ReturnDate)
	assert.Equal(t, day(2024, time.January, 4), *ret.Loan.ReturnDate)
	assert.Equal(t, 2, ret.AvailableCopies)
}

func Test_Return_OnTimeLostBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.circ.Borrow(ctx, "b1", "m1", day(2024, time.January, 1))
	require.NoError(t, err)

	ret, err := f.circ.Return(ctx, res.Loan.ID, day(2024, time.January, 1), "Mất sách")
	require.NoError(t, err)
	assert.Equal(t, 200000, ret.Loan.Fine)
}

// A second return must be rejected and availability must move exactly once.
func Test_Return_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.circ.Borrow(ctx, "b1", "m1", day(2024, time.January, 1))
	require.NoError(t, err)

	_, err = f.circ.Return(ctx, res.Loan.ID, day(2024, time.January, 2), "Tốt")
	require.NoError(t, err)
	assert.Equal(t, 2, f.available(t, "b1"))

	_, err = f.circ.Return(ctx, res.Loan.ID, day(2024, time.January, 3), "Tốt")
	assert.ErrorIs(t, err, circulation.ErrAlreadyReturned)
	assert.Equal(t, 2, f.available(t, "b1"))
}

func Test_Return_LoanNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.circ.Return(context.Background(), "ghost", day(2024, time.January, 2), "")
	assert.ErrorIs(t, err, circulation.ErrLoanNotFound)
}

func Test_Extend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.circ.Borrow(ctx, "b1", "m1", day(2024, time.January, 10))
	require.NoError(t, err)

	loan, err := f.circ.Extend(ctx, res.Loan.ID, day(2024, time.January, 20))
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.January, 20), loan.DueDate)

	// not strictly later
	_, err = f.circ.Extend(ctx, res.Loan.ID, day(2024, time.January, 20))
	assert.ErrorIs(t, err, circulation.ErrInvalidDueDate)
	_, err = f.circ.Extend(ctx, res.Loan.ID, day(2024, time.January, 5))
	assert.ErrorIs(t, err, circulation.ErrInvalidDueDate)

	_, err = f.circ.Return(ctx, res.Loan.ID, day(2024, time.January, 12), "Tốt")
	require.NoError(t, err)
	_, err = f.circ.Extend(ctx, res.Loan.ID, day(2024, time.February, 1))
	assert.ErrorIs(t, err, circulation.ErrAlreadyReturned)
}

func Test_EstimateFine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.circ.Borrow(ctx, "b1", "m1", day(2024, time.January, 10))
	require.NoError(t, err)

	fine, err := f.circ.EstimateFine(ctx, res.Loan.ID, day(2024, time.January, 13))
	require.NoError(t, err)
	assert.Equal(t, 15000, fine)

	// nothing was persisted by the preview
	loan, err := f.circ.GetLoan(ctx, res.Loan.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, loan.Fine)

	// after the return, the estimate is the stored fine
	_, err = f.circ.Return(ctx, res.Loan.ID, day(2024, time.January, 12), "Hỏng nhẹ")
	require.NoError(t, err)
	fine, err = f.circ.EstimateFine(ctx, res.Loan.ID, day(2024, time.June, 1))
	require.NoError(t, err)
	assert.Equal(t, 2*5000+10000, fine)
}

func Test_GetLoan_ProjectsOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.circ.Borrow(ctx, "b1", "m1", day(2024, time.January, 10))
	require.NoError(t, err)

	f.now = day(2024, time.January, 11)
	loan, err := f.circ.GetLoan(ctx, res.Loan.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.LoanOverdue, loan.Status)

	// the stored status is untouched; the projection is read-time only
	raw, err := f.store.GetLoan(ctx, res.Loan.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.LoanBorrowed, raw.Status)
}

func Test_ListUpcomingDueAndOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	soon, err := f.circ.Borrow(ctx, "b1", "m1", day(2024, time.January, 3))
	require.NoError(t, err)
	late, err := f.circ.Borrow(ctx, "b1", "m1", day(2023, time.December, 30))
	require.NoError(t, err)

	upcoming, err := f.circ.ListUpcomingDue(ctx, 3)
	require.NoError(t, err)
	require.Len(t, upcoming, 2) // overdue loans are due within the window too
	assert.Equal(t, late.Loan.ID, upcoming[0].ID)
	assert.Equal(t, circulation.LoanOverdue, upcoming[0].Status)
	assert.Equal(t, soon.Loan.ID, upcoming[1].ID)
	assert.Equal(t, circulation.LoanBorrowed, upcoming[1].Status)

	overdue, err := f.circ.ListOverdue(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, late.Loan.ID, overdue[0].Loan.ID)
	assert.Equal(t, 2, overdue[0].DaysLate)
	assert.Equal(t, 10000, overdue[0].AccruedFine)

	// returning the overdue loan clears both listings
	_, err = f.circ.Return(ctx, late.Loan.ID, f.now, "Tốt")
	require.NoError(t, err)
	overdue, err = f.circ.ListOverdue(ctx)
	require.NoError(t, err)
	assert.Empty(t, overdue)
}

// Full circulation walk: borrow the last copy, fail the second borrow,
// queue a hold, return, then approve and fulfill the hold.
func Test_EndToEnd_BorrowReserveReturnFulfill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.PutBook(circulation.Book{
		ID: "b2", Code: "NV-002", Title: "Dế Mèn Phiêu Lưu Ký", Author: "Tô Hoài",
		TotalCopies: 1, AvailableCopies: 1,
	})

	first, err := f.circ.Borrow(ctx, "b2", "m1", day(2024, time.January, 10))
	require.NoError(t, err)
	assert.Equal(t, 0, first.AvailableCopies)

	_, err = f.circ.Borrow(ctx, "b2", "m1", day(2024, time.January, 10))
	assert.ErrorIs(t, err, circulation.ErrOutOfStock)

	hold, err := f.res.Reserve(ctx, "b2", "m1", "")
	require.NoError(t, err)
	assert.Equal(t, circulation.ReservationPending, hold.Status)

	ret, err := f.circ.Return(ctx, first.Loan.ID, day(2024, time.January, 9), "Tốt")
	require.NoError(t, err)
	assert.Equal(t, 1, ret.AvailableCopies)

	_, err = f.res.UpdateStatus(ctx, hold.ID, circulation.ReservationApproved)
	require.NoError(t, err)

	upd, err := f.res.UpdateStatus(ctx, hold.ID, circulation.ReservationFulfilled)
	require.NoError(t, err)
	require.NotNil(t, upd.AvailableCopies)
	assert.Equal(t, 0, *upd.AvailableCopies)
	assert.Equal(t, 0, f.available(t, "b2"))

	// the hand-over loan rides on the fulfillment decrement
	loan, err := f.circ.BorrowFromReservation(ctx, upd.Reservation, day(2024, time.January, 23))
	require.NoError(t, err)
	assert.Equal(t, circulation.LoanBorrowed, loan.Status)
	assert.Equal(t, 0, f.available(t, "b2"))
}
