package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/minhtranq/library-circulation/internal/circulation"
	kafkax "github.com/minhtranq/library-circulation/internal/kafka"
)

type LoansHandler struct {
	Circulation *circulation.Service
	Created     *kafkax.Producer // library.loan.created
	Returned    *kafkax.Producer // library.loan.returned
	Redis       *redis.Client
	Log         *zap.Logger
	Service     string
}

type BorrowReq struct {
	BookID   string    `json:"book_id"`
	MemberID string    `json:"member_id"`
	DueDate  time.Time `json:"due_date"`
}

type ReturnReq struct {
	ReturnDate *time.Time `json:"return_date,omitempty"`
	Condition  string     `json:"condition,omitempty"`
}

type ExtendReq struct {
	NewDueDate time.Time `json:"new_due_date"`
}

func (h *LoansHandler) Register(r *chi.Mux) {
	r.Post("/loans", h.borrow)
	r.Post("/loans/{id}/return", h.returnLoan)
	r.Post("/loans/{id}/extend", h.extend)
	r.Get("/loans/{id}", h.getLoan)
	r.Get("/loans/{id}/fine", h.estimateFine)
	r.Get("/loans/due-soon", h.dueSoon)
	r.Get("/loans/overdue", h.overdue)
}

func (h *LoansHandler) borrow(w http.ResponseWriter, r *http.Request) {
	var req BorrowReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}
	if req.BookID == "" || req.MemberID == "" || req.DueDate.IsZero() {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Circulation.Borrow(ctx, req.BookID, req.MemberID, req.DueDate)
	if err != nil {
		writeError(w, err)
		return
	}

	invalidateAvailability(ctx, h.Redis, h.Log, req.BookID)
	h.publishCreated(r, res)

	writeJSON(w, http.StatusCreated, res)
}

func (h *LoansHandler) returnLoan(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "id")
	var req ReturnReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}
	returnDate := time.Now().UTC()
	if req.ReturnDate != nil {
		returnDate = *req.ReturnDate
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Circulation.Return(ctx, loanID, returnDate, req.Condition)
	if err != nil {
		writeError(w, err)
		return
	}

	invalidateAvailability(ctx, h.Redis, h.Log, res.Loan.BookID)
	h.publishReturned(r, res)

	writeJSON(w, http.StatusOK, res)
}

func (h *LoansHandler) extend(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "id")
	var req ExtendReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}
	if req.NewDueDate.IsZero() {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "missing new_due_date"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	loan, err := h.Circulation.Extend(ctx, loanID, req.NewDueDate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (h *LoansHandler) getLoan(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	loan, err := h.Circulation.GetLoan(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// estimateFine previews the fine as of now without writing anything.
func (h *LoansHandler) estimateFine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	asOf := time.Now().UTC()
	fine, err := h.Circulation.EstimateFine(ctx, chi.URLParam(r, "id"), asOf)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fine": fine, "as_of": asOf})
}

func (h *LoansHandler) dueSoon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	withinDays := circulation.DefaultReminderWindowDays
	if v := r.URL.Query().Get("within_days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			withinDays = n
		}
	}
	loans, err := h.Circulation.ListUpcomingDue(ctx, withinDays)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (h *LoansHandler) overdue(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	loans, err := h.Circulation.ListOverdue(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (h *LoansHandler) publishCreated(r *http.Request, res circulation.BorrowResult) {
	if h.Created == nil {
		return
	}
	ev := circulation.Envelope{
		EventID:       uuid.NewString(),
		EventType:     circulation.EventLoanCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: res.Loan.ID,
		Payload: kafkax.MustMarshal(circulation.LoanCreatedPayload{
			LoanID:          res.Loan.ID,
			BookID:          res.Loan.BookID,
			MemberID:        res.Loan.MemberID,
			DueDate:         res.Loan.DueDate,
			Book:            res.Loan.Book,
			Member:          res.Loan.Member,
			AvailableCopies: res.AvailableCopies,
		}),
	}
	h.Created.Publish(circulation.PartitionKey(res.Loan.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(circulation.EventLoanCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (h *LoansHandler) publishReturned(r *http.Request, res circulation.ReturnResult) {
	if h.Returned == nil {
		return
	}
	ev := circulation.Envelope{
		EventID:       uuid.NewString(),
		EventType:     circulation.EventLoanReturned,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: res.Loan.ID,
		Payload: kafkax.MustMarshal(circulation.LoanReturnedPayload{
			LoanID:          res.Loan.ID,
			BookID:          res.Loan.BookID,
			ReturnDate:      *res.Loan.ReturnDate,
			Condition:       res.Loan.Condition,
			Fine:            res.Loan.Fine,
			AvailableCopies: res.AvailableCopies,
		}),
	}
	h.Returned.Publish(circulation.PartitionKey(res.Loan.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(circulation.EventLoanReturned)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
