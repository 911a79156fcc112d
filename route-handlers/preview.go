package routehandlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kfimusic/beatstore/config"
	"github.com/kfimusic/beatstore/webutil"
)

// PreviewExpiry is the lifetime of audition links.
const PreviewExpiry = 5 * time.Minute

// URLSigner mints time-limited object URLs.
type URLSigner interface {
	SignURL(ctx context.Context, path string, expiry time.Duration) (string, error)
}

type PreviewHandler struct {
	Catalog config.Catalog
	Signer  URLSigner
}

func NewPreviewHandler(catalog config.Catalog, signer URLSigner) *PreviewHandler {
	return &PreviewHandler{Catalog: catalog, Signer: signer}
}

// HandleGetPreview signs the catalog's preview object. With ?redirect=1 it
// redirects to the signed URL instead of returning it.
func (h *PreviewHandler) HandleGetPreview(w http.ResponseWriter, r *http.Request) error {
	if h.Signer == nil {
		return webutil.ErrInternalServer("Storage not configured")
	}

	product, ok := h.Catalog.Find(chi.URLParam(r, ParamProductKey))
	if !ok || product.Preview == "" {
		return webutil.ErrNotFound("Unknown beat")
	}

	url, err := h.Signer.SignURL(r.Context(), product.Preview, PreviewExpiry)
	if err != nil {
		return webutil.ErrInternalServerWrap("Failed to sign preview URL", err)
	}

	if r.URL.Query().Get("redirect") == "1" {
		http.Redirect(w, r, url, http.StatusFound)
		return nil
	}
	webutil.RespondWithJSON(w, http.StatusOK, map[string]string{"url": url})
	return nil
}
