package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/minhtranq/library-circulation/internal/circulation"
)

const reservationColumns = `id, book_id, member_id, reservation_date, expiry_date, status, notes`

func scanReservation(row pgx.Row) (circulation.Reservation, error) {
	var r circulation.Reservation
	var notes *string
	err := row.Scan(&r.ID, &r.BookID, &r.MemberID, &r.ReservationDate, &r.ExpiryDate, &r.Status, &notes)
	if err != nil {
		return circulation.Reservation{}, err
	}
	if notes != nil {
		r.Notes = *notes
	}
	return r, nil
}

func (s *Store) CreateReservation(ctx context.Context, r circulation.Reservation) error {
	var notes *string
	if r.Notes != "" {
		notes = &r.Notes
	}
	_, err := s.DB.Exec(ctx, `
		INSERT INTO reservations(id, book_id, member_id, reservation_date, expiry_date, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		r.ID, r.BookID, r.MemberID, r.ReservationDate, r.ExpiryDate, r.Status, notes)
	return err
}

func (s *Store) GetReservation(ctx context.Context, id string) (circulation.Reservation, error) {
	r, err := scanReservation(s.DB.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return circulation.Reservation{}, fmt.Errorf("reservation %s: %w", id, circulation.ErrReservationNotFound)
	}
	if err != nil {
		return circulation.Reservation{}, err
	}
	return r, nil
}

// TransitionReservation writes the new status only when the current status is
// in the expected source set. The sweep and staff updates both go through
// this guard, so neither can overwrite the other's terminal write.
func (s *Store) TransitionReservation(ctx context.Context, id string, from []circulation.ReservationStatus, to circulation.ReservationStatus) (circulation.Reservation, error) {
	fromStrs := make([]string, len(from))
	for i, f := range from {
		fromStrs[i] = string(f)
	}
	r, err := scanReservation(s.DB.QueryRow(ctx, `
		UPDATE reservations SET status=$2
		WHERE id=$1 AND status = ANY($3)
		RETURNING `+reservationColumns, id, to, fromStrs))
	if errors.Is(err, pgx.ErrNoRows) {
		var one int
		if lookErr := s.DB.QueryRow(ctx, `SELECT 1 FROM reservations WHERE id=$1`, id).Scan(&one); errors.Is(lookErr, pgx.ErrNoRows) {
			return circulation.Reservation{}, fmt.Errorf("reservation %s: %w", id, circulation.ErrReservationNotFound)
		} else if lookErr != nil {
			return circulation.Reservation{}, lookErr
		}
		return circulation.Reservation{}, fmt.Errorf("reservation %s to %s: %w", id, to, circulation.ErrInvalidTransition)
	}
	if err != nil {
		return circulation.Reservation{}, err
	}
	return r, nil
}

// FulfillReservation is the approved -> fulfilled edge plus the availability
// decrement in one transaction: either the copy is handed over and recorded,
// or nothing happened.
func (s *Store) FulfillReservation(ctx context.Context, id string) (circulation.Reservation, int, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return circulation.Reservation{}, 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	r, err := scanReservation(tx.QueryRow(ctx, `
		UPDATE reservations SET status=$2
		WHERE id=$1 AND status=$3
		RETURNING `+reservationColumns,
		id, circulation.ReservationFulfilled, circulation.ReservationApproved))
	if errors.Is(err, pgx.ErrNoRows) {
		var one int
		if lookErr := tx.QueryRow(ctx, `SELECT 1 FROM reservations WHERE id=$1`, id).Scan(&one); errors.Is(lookErr, pgx.ErrNoRows) {
			return circulation.Reservation{}, 0, fmt.Errorf("reservation %s: %w", id, circulation.ErrReservationNotFound)
		} else if lookErr != nil {
			return circulation.Reservation{}, 0, lookErr
		}
		return circulation.Reservation{}, 0, fmt.Errorf("reservation %s to %s: %w",
			id, circulation.ReservationFulfilled, circulation.ErrInvalidTransition)
	}
	if err != nil {
		return circulation.Reservation{}, 0, err
	}

	available, err := decrement(ctx, tx, r.BookID)
	if err != nil {
		return circulation.Reservation{}, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return circulation.Reservation{}, 0, err
	}
	return r, available, nil
}

func (s *Store) ExpireReservationsBefore(ctx context.Context, cutoff time.Time) ([]circulation.Reservation, error) {
	rows, err := s.DB.Query(ctx, `
		UPDATE reservations SET status=$2
		WHERE status = ANY($3) AND expiry_date < $1
		RETURNING `+reservationColumns,
		cutoff, circulation.ReservationExpired,
		[]string{string(circulation.ReservationPending), string(circulation.ReservationApproved)})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []circulation.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, r)
	}
	return expired, rows.Err()
}
