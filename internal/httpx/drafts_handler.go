package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/andrifirman/go-print-assets/internal/assets"
	"github.com/andrifirman/go-print-assets/internal/drafts"
	"github.com/andrifirman/go-print-assets/internal/fetch"
)

type DraftsHandler struct {
	Registry *drafts.Registry
	Fetcher  *fetch.Client
}

type registerDraftReq struct {
	SourceReference string `json:"source_reference"`
	IsPublic        bool   `json:"is_public"`
}

type registerDraftResp struct {
	HandleID string `json:"handle_id"`
}

func (h *DraftsHandler) Register(r *chi.Mux) {
	r.Post("/drafts", h.registerDraft)
	r.Get("/drafts/proxy", h.proxyDraft)
	r.Get("/drafts/{id}", h.resolveDraft)
}

func (h *DraftsHandler) registerDraft(w http.ResponseWriter, r *http.Request) {
	var req registerDraftReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.SourceReference == "" {
		writeError(w, http.StatusBadRequest, "missing source_reference")
		return
	}
	vis := assets.VisibilityPrivate
	if req.IsPublic {
		vis = assets.VisibilityPublic
	}
	id := h.Registry.Register(assets.ExternalRef(req.SourceReference), vis)
	writeJSON(w, http.StatusCreated, registerDraftResp{HandleID: id})
}

// resolveDraft redirects public drafts to their reference and streams private
// ones through with the original content type. Expired handles are gone for
// good; the client has to regenerate.
func (h *DraftsHandler) resolveDraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	handle, err := h.Registry.Resolve(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "draft expired, please regenerate your design")
		return
	}

	if handle.Visibility == assets.VisibilityPublic {
		http.Redirect(w, r, handle.Source.Key, http.StatusFound)
		return
	}

	h.streamSource(w, r, handle.Source.Key)
}

// proxyDraft streams a reference that never got a handle, so clients can
// preview a design without registering it first.
func (h *DraftsHandler) proxyDraft(w http.ResponseWriter, r *http.Request) {
	src := r.URL.Query().Get("src")
	if src == "" {
		writeError(w, http.StatusBadRequest, "missing src")
		return
	}
	h.streamSource(w, r, src)
}

func (h *DraftsHandler) streamSource(w http.ResponseWriter, r *http.Request, key string) {
	rc, contentType, err := h.Fetcher.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, fetch.ErrGone) {
			writeError(w, http.StatusNotFound, "draft source gone, please regenerate your design")
			return
		}
		writeError(w, http.StatusBadGateway, "draft fetch failed")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}
