package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/andrifirman/go-print-assets/internal/binder"
	"github.com/andrifirman/go-print-assets/internal/redisx"
)

// OrderAssetsHandler is the read side of the render pipeline: fulfillment
// tooling polls it for the per-item output references of a paid order.
type OrderAssetsHandler struct {
	Results *binder.Repo
	Redis   *redis.Client
}

func (h *OrderAssetsHandler) Register(r *chi.Mux) {
	r.Get("/orders/{id}/assets", h.getOrderAssets)
}

func (h *OrderAssetsHandler) getOrderAssets(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderAssets, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	results, err := h.Results.ListByOrder(ctx, orderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(results) == 0 {
		writeError(w, http.StatusNotFound, "no rendered assets for order")
		return
	}

	b, _ := json.Marshal(results)
	_ = h.Redis.Set(ctx, key, b, redisx.TTLAssetsCache).Err()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
