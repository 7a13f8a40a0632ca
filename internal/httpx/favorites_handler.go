package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/andrifirman/go-print-assets/internal/assets"
	"github.com/andrifirman/go-print-assets/internal/favorites"
	"github.com/andrifirman/go-print-assets/internal/redisx"
)

type FavoritesHandler struct {
	Service *favorites.Service
	Redis   *redis.Client
}

type saveFavoriteReq struct {
	Name            string            `json:"name"`
	SourceReference string            `json:"source_reference"`
	PrintReadyRef   string            `json:"print_ready_reference,omitempty"`
	ProductID       string            `json:"product_id,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

type saveFavoriteResp struct {
	Asset        assets.SavedAsset `json:"asset"`
	AlreadySaved bool              `json:"already_saved"`
}

func (h *FavoritesHandler) Register(r *chi.Mux) {
	r.Post("/favorites", h.save)
	r.Get("/favorites", h.list)
	r.Delete("/favorites/{id}", h.delete)
}

func (h *FavoritesHandler) save(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	var req saveFavoriteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.SourceReference == "" {
		writeError(w, http.StatusBadRequest, "missing source_reference")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	// fast-path hint only; the DB constraint stays the source of truth
	idemKey := fmt.Sprintf(redisx.KeyIdemSave, owner, sourceHash(req.SourceReference))
	_, _ = redisx.Exists(ctx, h.Redis, idemKey)

	asset, already, err := h.Service.Save(ctx, owner, favorites.SaveInput{
		Name:          req.Name,
		SourceRef:     req.SourceReference,
		PrintReadyRef: req.PrintReadyRef,
		ProductID:     req.ProductID,
		Metadata:      req.Metadata,
	})
	if err != nil {
		if errors.Is(err, assets.ErrSourceExpired) {
			writeError(w, http.StatusGone, "design source expired, please regenerate your design")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	_ = h.Redis.Set(ctx, idemKey, asset.ID, redisx.TTLIdempotency).Err()

	code := http.StatusCreated
	if already {
		code = http.StatusOK
	}
	writeJSON(w, code, saveFavoriteResp{Asset: asset, AlreadySaved: already})
}

func (h *FavoritesHandler) list(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	out, err := h.Service.List(ctx, owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if out == nil {
		out = []assets.SavedAsset{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *FavoritesHandler) delete(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	err := h.Service.Delete(ctx, owner, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, assets.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, assets.ErrForbidden):
		writeError(w, http.StatusForbidden, "not your asset")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func sourceHash(ref string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(ref))
}
