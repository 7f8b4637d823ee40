package redisx

import "time"

const (
	// Cached availability payload per book: book_avail:{book_id} -> JSON.
	// Invalidated by every borrow/return/fulfillment.
	KeyBookAvail = "book_avail:%s"

	// Notification dedup: notify:{kind}:{loan_or_reservation_id}:{yyyy-mm-dd}.
	// Keeps the sweeper from republishing the same reminder every tick; the
	// delivery collaborator still dedups actual sends.
	KeyNotifyDedup = "notify:%s:%s:%s"
)

var (
	TTLBookAvail   = 5 * time.Minute
	TTLNotifyDedup = 48 * time.Hour
)
