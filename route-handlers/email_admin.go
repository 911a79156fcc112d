package routehandlers

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/kfimusic/beatstore/delivery"
	"github.com/kfimusic/beatstore/fulfillment"
	"github.com/kfimusic/beatstore/webutil"
)

// TestSender emails a folder's files outside of any purchase.
type TestSender interface {
	SendTestDownload(ctx context.Context, to, folder, transport string) (*fulfillment.TestSendResult, error)
}

type EmailAdminHandler struct {
	Notifier *delivery.Notifier
	Tester   TestSender
}

func NewEmailAdminHandler(notifier *delivery.Notifier, tester TestSender) *EmailAdminHandler {
	return &EmailAdminHandler{Notifier: notifier, Tester: tester}
}

type senderResponse struct {
	OK            bool   `json:"ok"`
	Mode          string `json:"mode"`
	EffectiveFrom string `json:"effectiveFrom"`
	RawFrom       string `json:"rawFrom,omitempty"`
	FallbackFrom  string `json:"fallbackFrom,omitempty"`
}

func (h *EmailAdminHandler) senderState() senderResponse {
	mode := h.Notifier.Modes().Mode()
	ids := h.Notifier.Identities()
	return senderResponse{
		OK:            true,
		Mode:          string(mode),
		EffectiveFrom: ids.Effective(mode),
		RawFrom:       ids.Branded,
		FallbackFrom:  ids.Fallback,
	}
}

// HandleGetSender reports the current sender mode and identity.
func (h *EmailAdminHandler) HandleGetSender(w http.ResponseWriter, r *http.Request) error {
	webutil.RespondWithJSON(w, http.StatusOK, h.senderState())
	return nil
}

type setSenderRequest struct {
	Mode string `json:"mode"`
}

// HandleSetSender switches the sender mode until the next restart.
func (h *EmailAdminHandler) HandleSetSender(w http.ResponseWriter, r *http.Request) error {
	var req setSenderRequest
	if err := webutil.DecodeJSON(w, r, &req); err != nil {
		return err
	}
	mode, err := delivery.ParseSenderMode(req.Mode)
	if err != nil {
		return webutil.ErrBadRequest("mode must be auto|onboarding|branded")
	}
	h.Notifier.Modes().Set(mode)
	webutil.RespondWithJSON(w, http.StatusOK, h.senderState())
	return nil
}

// HandleGetTransport describes the configured email chain.
func (h *EmailAdminHandler) HandleGetTransport(w http.ResponseWriter, r *http.Request) error {
	webutil.RespondWithJSON(w, http.StatusOK, h.Notifier.Describe())
	return nil
}

type testDownloadRequest struct {
	To        string `json:"to"`
	Folder    string `json:"folder"`
	Transport string `json:"transport,omitempty"`
}

// HandleTestDownload emails a folder's files with one-hour links.
func (h *EmailAdminHandler) HandleTestDownload(w http.ResponseWriter, r *http.Request) error {
	var req testDownloadRequest
	if err := webutil.DecodeJSON(w, r, &req); err != nil {
		return err
	}
	req.To = strings.TrimSpace(req.To)
	req.Folder = strings.Trim(strings.TrimSpace(req.Folder), "/")
	if req.To == "" || req.Folder == "" {
		return webutil.ErrBadRequest("Missing to or folder")
	}
	if _, err := mail.ParseAddress(req.To); err != nil {
		return webutil.ErrBadRequest("Invalid recipient address")
	}

	transport := strings.ToLower(strings.TrimSpace(req.Transport))
	switch transport {
	case "", delivery.TransportAuto, delivery.TransportSMTP:
	default:
		return webutil.ErrBadRequest("transport must be auto|smtp")
	}

	result, err := h.Tester.SendTestDownload(r.Context(), req.To, req.Folder, transport)
	switch {
	case err == nil:
		webutil.RespondWithJSON(w, http.StatusOK, map[string]any{"ok": true, "result": result})
		return nil
	case errors.Is(err, delivery.ErrNoTransport) && transport == delivery.TransportSMTP:
		return webutil.ErrBadRequest("SMTP not configured")
	case errors.Is(err, fulfillment.ErrNotConfigured), errors.Is(err, delivery.ErrNoTransport):
		return webutil.ErrInternalServerWrap("Email or storage not configured", err)
	default:
		return webutil.ErrInternalServerWrap("Test email failed", err)
	}
}
