// Package pgstore implements the circulation Store on Postgres via pgx.
// Inventory counts are guarded by atomic conditional UPDATEs: two concurrent
// borrows of the last copy can never both succeed.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minhtranq/library-circulation/internal/circulation"
)

type Store struct{ DB *pgxpool.Pool }

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

const bookColumns = `id, code, title, author, isbn, category, total_copies, available_copies, created_at, updated_at`

func (s *Store) GetBook(ctx context.Context, id string) (circulation.Book, error) {
	var b circulation.Book
	err := s.DB.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id=$1`, id).
		Scan(&b.ID, &b.Code, &b.Title, &b.Author, &b.ISBN, &b.Category,
			&b.TotalCopies, &b.AvailableCopies, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return circulation.Book{}, fmt.Errorf("book %s: %w", id, circulation.ErrBookNotFound)
	}
	if err != nil {
		return circulation.Book{}, err
	}
	return b, nil
}

func (s *Store) GetMember(ctx context.Context, id string) (circulation.Member, error) {
	var m circulation.Member
	err := s.DB.QueryRow(ctx,
		`SELECT id, code, name, email, status, membership_type FROM members WHERE id=$1`, id).
		Scan(&m.ID, &m.Code, &m.Name, &m.Email, &m.Status, &m.Type)
	if errors.Is(err, pgx.ErrNoRows) {
		return circulation.Member{}, fmt.Errorf("member %s: %w", id, circulation.ErrMemberNotFound)
	}
	if err != nil {
		return circulation.Member{}, err
	}
	return m, nil
}

// decrement applies the compare-and-decrement. The WHERE clause is the whole
// correctness story: losers of a race on the last copy match zero rows.
func decrement(ctx context.Context, q pgx.Tx, bookID string) (int, error) {
	return conditionalCount(ctx, q.QueryRow(ctx, `
		UPDATE books SET available_copies = available_copies - 1, updated_at = now()
		WHERE id = $1 AND available_copies > 0
		RETURNING available_copies`, bookID), q, bookID, circulation.ErrOutOfStock)
}

func increment(ctx context.Context, q pgx.Tx, bookID string) (int, error) {
	return conditionalCount(ctx, q.QueryRow(ctx, `
		UPDATE books SET available_copies = available_copies + 1, updated_at = now()
		WHERE id = $1 AND available_copies < total_copies
		RETURNING available_copies`, bookID), q, bookID, circulation.ErrOverCapacity)
}

// conditionalCount maps a zero-row conditional update to either the bound
// violation or a missing book.
func conditionalCount(ctx context.Context, row pgx.Row, q pgx.Tx, bookID string, bound error) (int, error) {
	var available int
	err := row.Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		var one int
		if lookErr := q.QueryRow(ctx, `SELECT 1 FROM books WHERE id=$1`, bookID).Scan(&one); errors.Is(lookErr, pgx.ErrNoRows) {
			return 0, fmt.Errorf("book %s: %w", bookID, circulation.ErrBookNotFound)
		} else if lookErr != nil {
			return 0, lookErr
		}
		return 0, fmt.Errorf("book %s: %w", bookID, bound)
	}
	if err != nil {
		return 0, err
	}
	return available, nil
}

func (s *Store) DecrementAvailable(ctx context.Context, bookID string) (int, error) {
	return s.inTx(ctx, func(tx pgx.Tx) (int, error) { return decrement(ctx, tx, bookID) })
}

func (s *Store) IncrementAvailable(ctx context.Context, bookID string) (int, error) {
	return s.inTx(ctx, func(tx pgx.Tx) (int, error) { return increment(ctx, tx, bookID) })
}

func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) (int, error)) (int, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	n, err := fn(tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return n, nil
}

const loanColumns = `id, book_id, member_id, book_title, book_author, book_code,
	member_name, member_code, member_email,
	borrow_date, due_date, return_date, status, fine, condition, created_at, updated_at`

func scanLoan(row pgx.Row) (circulation.Loan, error) {
	var l circulation.Loan
	var condition *string
	err := row.Scan(&l.ID, &l.BookID, &l.MemberID,
		&l.Book.Title, &l.Book.Author, &l.Book.Code,
		&l.Member.Name, &l.Member.Code, &l.Member.Email,
		&l.BorrowDate, &l.DueDate, &l.ReturnDate, &l.Status, &l.Fine, &condition,
		&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return circulation.Loan{}, err
	}
	if condition != nil {
		l.Condition = *condition
	}
	return l, nil
}

func insertLoan(ctx context.Context, tx pgx.Tx, l circulation.Loan) error {
	var condition *string
	if l.Condition != "" {
		condition = &l.Condition
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO loans(id, book_id, member_id, book_title, book_author, book_code,
			member_name, member_code, member_email,
			borrow_date, due_date, return_date, status, fine, condition, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		l.ID, l.BookID, l.MemberID, l.Book.Title, l.Book.Author, l.Book.Code,
		l.Member.Name, l.Member.Code, l.Member.Email,
		l.BorrowDate, l.DueDate, l.ReturnDate, l.Status, l.Fine, condition,
		l.CreatedAt, l.UpdatedAt)
	return err
}

// CreateLoan decrements availability and inserts the loan in one transaction,
// so a failed precondition leaves nothing behind.
func (s *Store) CreateLoan(ctx context.Context, l circulation.Loan) (int, error) {
	return s.inTx(ctx, func(tx pgx.Tx) (int, error) {
		available, err := decrement(ctx, tx, l.BookID)
		if err != nil {
			return 0, err
		}
		if err := insertLoan(ctx, tx, l); err != nil {
			return 0, err
		}
		return available, nil
	})
}

func (s *Store) InsertLoan(ctx context.Context, l circulation.Loan) error {
	_, err := s.inTx(ctx, func(tx pgx.Tx) (int, error) {
		return 0, insertLoan(ctx, tx, l)
	})
	return err
}

func (s *Store) GetLoan(ctx context.Context, id string) (circulation.Loan, error) {
	l, err := scanLoan(s.DB.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return circulation.Loan{}, fmt.Errorf("loan %s: %w", id, circulation.ErrLoanNotFound)
	}
	if err != nil {
		return circulation.Loan{}, err
	}
	return l, nil
}

// FinishLoan closes the loan only if it is still open (return_date IS NULL is
// the guard) and increments availability in the same transaction.
func (s *Store) FinishLoan(ctx context.Context, l circulation.Loan) (int, error) {
	return s.inTx(ctx, func(tx pgx.Tx) (int, error) {
		var condition *string
		if l.Condition != "" {
			condition = &l.Condition
		}
		ct, err := tx.Exec(ctx, `
			UPDATE loans SET return_date=$2, status=$3, fine=$4, condition=$5, updated_at=$6
			WHERE id=$1 AND return_date IS NULL`,
			l.ID, l.ReturnDate, circulation.LoanReturned, l.Fine, condition, l.UpdatedAt)
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			var one int
			if lookErr := tx.QueryRow(ctx, `SELECT 1 FROM loans WHERE id=$1`, l.ID).Scan(&one); errors.Is(lookErr, pgx.ErrNoRows) {
				return 0, fmt.Errorf("loan %s: %w", l.ID, circulation.ErrLoanNotFound)
			} else if lookErr != nil {
				return 0, lookErr
			}
			return 0, fmt.Errorf("loan %s: %w", l.ID, circulation.ErrAlreadyReturned)
		}
		return increment(ctx, tx, l.BookID)
	})
}

func (s *Store) SetLoanDueDate(ctx context.Context, id string, due time.Time) error {
	_, err := s.inTx(ctx, func(tx pgx.Tx) (int, error) {
		ct, err := tx.Exec(ctx, `
			UPDATE loans SET due_date=$2, updated_at=now()
			WHERE id=$1 AND return_date IS NULL`, id, due)
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			var one int
			if lookErr := tx.QueryRow(ctx, `SELECT 1 FROM loans WHERE id=$1`, id).Scan(&one); errors.Is(lookErr, pgx.ErrNoRows) {
				return 0, fmt.Errorf("loan %s: %w", id, circulation.ErrLoanNotFound)
			} else if lookErr != nil {
				return 0, lookErr
			}
			return 0, fmt.Errorf("loan %s: %w", id, circulation.ErrAlreadyReturned)
		}
		return 0, nil
	})
	return err
}

func (s *Store) ListOpenLoansDueBefore(ctx context.Context, cutoff time.Time) ([]circulation.Loan, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+loanColumns+` FROM loans
		WHERE return_date IS NULL AND due_date < $1
		ORDER BY due_date`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []circulation.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
