package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/minhtranq/library-circulation/internal/circulation"
	"github.com/minhtranq/library-circulation/internal/redisx"
)

// BooksHandler serves the availability read used by the catalog UI. The
// payload is cached in Redis and invalidated by every state change.
type BooksHandler struct {
	Circulation *circulation.Service
	Redis       *redis.Client
	Log         *zap.Logger
}

func (h *BooksHandler) Register(r *chi.Mux) {
	r.Get("/books/{id}", h.get)
}

func (h *BooksHandler) get(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyBookAvail, bookID)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	book, err := h.Circulation.Store.GetBook(ctx, bookID)
	if err != nil {
		writeError(w, err)
		return
	}
	b, _ := json.Marshal(book)
	if h.Redis != nil {
		_ = h.Redis.Set(ctx, key, b, redisx.TTLBookAvail).Err()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func invalidateAvailability(ctx context.Context, rdb *redis.Client, log *zap.Logger, bookID string) {
	if rdb == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyBookAvail, bookID)
	if err := rdb.Del(ctx, key).Err(); err != nil && log != nil {
		log.Warn("availability cache invalidation failed", zap.String("book_id", bookID), zap.Error(err))
	}
}
