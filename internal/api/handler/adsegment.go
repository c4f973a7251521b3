package handler

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hweng-dev/adsplice/internal/domain/repository"
)

// VariantOriginal is the {variant} path value that selects a creative's
// pre-encoded original segments instead of a transcoded variant.
const VariantOriginal = "orig"

// AdSegmentHandler serves ad media segments: transcoded variants from
// the local variant store (object storage as fallback), originals from
// object storage via the catalog's segment keys.
type AdSegmentHandler struct {
	catalog    repository.AdCatalog
	storage    repository.ObjectStorage
	variantDir string
}

// NewAdSegmentHandler creates a new AdSegmentHandler.
func NewAdSegmentHandler(catalog repository.AdCatalog, storage repository.ObjectStorage, variantDir string) *AdSegmentHandler {
	return &AdSegmentHandler{catalog: catalog, storage: storage, variantDir: variantDir}
}

// Get handles GET /v1/ads/{creative}/{variant}/{segment}.
func (h *AdSegmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	creativeID := chi.URLParam(r, "creative")
	variant := chi.URLParam(r, "variant")
	segment := chi.URLParam(r, "segment")

	if !validPathComponent(creativeID) || !validPathComponent(variant) || !validPathComponent(segment) {
		Error(w, http.StatusBadRequest, "invalid_path", "Path components must be plain names")
		return
	}

	if variant == VariantOriginal {
		h.serveOriginal(w, r, creativeID, segment)
		return
	}
	h.serveVariant(w, r, creativeID, variant, segment)
}

// serveVariant serves from the local variant store, falling back to the
// durable copy in object storage when this instance never built the
// variant itself.
func (h *AdSegmentHandler) serveVariant(w http.ResponseWriter, r *http.Request, creativeID, variant, segment string) {
	local := filepath.Join(h.variantDir, creativeID, variant, segment)
	if f, err := os.Open(local); err == nil {
		defer f.Close()
		w.Header().Set("Content-Type", "video/mp2t")
		w.WriteHeader(http.StatusOK)
		io.Copy(w, f)
		return
	}

	key := path.Join("variants", creativeID, variant, segment)
	h.streamObject(w, r, key)
}

// serveOriginal maps the segment basename back to the creative's stored
// segment key and streams it from object storage.
func (h *AdSegmentHandler) serveOriginal(w http.ResponseWriter, r *http.Request, creativeID, segment string) {
	creative, err := h.catalog.GetByID(r.Context(), creativeID)
	if err != nil {
		if errors.Is(err, repository.ErrCreativeNotFound) {
			Error(w, http.StatusNotFound, "creative_not_found", "Ad creative not found")
			return
		}
		Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}

	for _, key := range creative.SegmentKeys {
		if path.Base(key) == segment {
			h.streamObject(w, r, key)
			return
		}
	}
	Error(w, http.StatusNotFound, "segment_not_found", "Ad segment not found")
}

func (h *AdSegmentHandler) streamObject(w http.ResponseWriter, r *http.Request, key string) {
	obj, err := h.storage.Download(r.Context(), key)
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			Error(w, http.StatusNotFound, "segment_not_found", "Ad segment not found")
			return
		}
		Error(w, http.StatusBadGateway, "storage_unavailable", "Failed to read ad segment")
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", "video/mp2t")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, obj)
}

// validPathComponent rejects empty names and anything that could walk
// out of the variant store.
func validPathComponent(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, "/\\")
}
