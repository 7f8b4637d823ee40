package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/minhtranq/library-circulation/internal/circulation"
)

type ReservationsHandler struct {
	Reservations *circulation.ReservationService
	Circulation  *circulation.Service
	Redis        *redis.Client
	Log          *zap.Logger
	Service      string
}

type ReserveReq struct {
	BookID   string `json:"book_id"`
	MemberID string `json:"member_id"`
	Notes    string `json:"notes,omitempty"`
}

// UpdateStatusReq carries the requested transition. For fulfillment, DueDate
// makes the handler also create the loan for the reservation's member/book,
// covering the hand-over step at the circulation boundary.
type UpdateStatusReq struct {
	Status  circulation.ReservationStatus `json:"status"`
	DueDate *time.Time                    `json:"due_date,omitempty"`
}

type FulfillResp struct {
	Reservation     circulation.Reservation `json:"reservation"`
	Loan            *circulation.Loan       `json:"loan,omitempty"`
	AvailableCopies *int                    `json:"available_copies,omitempty"`
}

func (h *ReservationsHandler) Register(r *chi.Mux) {
	r.Post("/reservations", h.create)
	r.Post("/reservations/{id}/cancel", h.cancel)
	r.Patch("/reservations/{id}/status", h.updateStatus)
	r.Get("/reservations/{id}", h.get)
}

func (h *ReservationsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req ReserveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}
	if req.BookID == "" || req.MemberID == "" {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Reservations.Reserve(ctx, req.BookID, req.MemberID, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *ReservationsHandler) cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Reservations.Cancel(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ReservationsHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	reservationID := chi.URLParam(r, "id")
	var req UpdateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	upd, err := h.Reservations.UpdateStatus(ctx, reservationID, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := FulfillResp{Reservation: upd.Reservation, AvailableCopies: upd.AvailableCopies}

	if req.Status == circulation.ReservationFulfilled {
		invalidateAvailability(ctx, h.Redis, h.Log, upd.Reservation.BookID)
		// the copy was committed by the fulfillment; the loan rides on it
		if req.DueDate != nil {
			loan, err := h.Circulation.BorrowFromReservation(ctx, upd.Reservation, *req.DueDate)
			if err != nil {
				h.Log.Error("loan creation after fulfillment failed",
					zap.String("reservation_id", reservationID), zap.Error(err))
				writeError(w, err)
				return
			}
			resp.Loan = &loan
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *ReservationsHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	res, err := h.Reservations.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
