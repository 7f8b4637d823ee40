package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/minhtranq/library-circulation/internal/circulation"
)

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError maps business-rule rejections to 4xx with a stable code string;
// anything else is an infrastructure failure and stays a generic 500.
func writeError(w http.ResponseWriter, err error) {
	for _, m := range errorMap {
		if errors.Is(err, m.err) {
			writeJSON(w, m.status, errBody{Error: err.Error(), Code: m.code})
			return
		}
	}
	writeJSON(w, http.StatusInternalServerError, errBody{Error: "internal error"})
}

var errorMap = []struct {
	err    error
	status int
	code   string
}{
	{circulation.ErrOutOfStock, http.StatusConflict, "OUT_OF_STOCK"},
	{circulation.ErrOverCapacity, http.StatusConflict, "OVER_CAPACITY"},
	{circulation.ErrMemberNotActive, http.StatusForbidden, "MEMBER_NOT_ACTIVE"},
	{circulation.ErrAlreadyReturned, http.StatusConflict, "ALREADY_RETURNED"},
	{circulation.ErrLoanNotFound, http.StatusNotFound, "LOAN_NOT_FOUND"},
	{circulation.ErrReservationNotFound, http.StatusNotFound, "RESERVATION_NOT_FOUND"},
	{circulation.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
	{circulation.ErrInvalidDueDate, http.StatusUnprocessableEntity, "INVALID_DUE_DATE"},
	{circulation.ErrIncompleteSourceRecord, http.StatusUnprocessableEntity, "INCOMPLETE_SOURCE_RECORD"},
	{circulation.ErrBookNotFound, http.StatusNotFound, "BOOK_NOT_FOUND"},
	{circulation.ErrMemberNotFound, http.StatusNotFound, "MEMBER_NOT_FOUND"},
}
