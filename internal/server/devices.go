package server

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotibridge/internal/directory"
	"github.com/desertthunder/spotibridge/internal/shared"
)

// DeviceHandler serves device registration, verification and linking.
type DeviceHandler struct {
	devices  Devices
	sessions *SessionManager
	limiter  *RateLimiter
	logger   *log.Logger
}

// Routes returns the HTTP routes this handler serves.
func (h *DeviceHandler) Routes() []string {
	return []string{"/api/devices/register", "/api/devices/verify", "/api/devices/link"}
}

// ServeHTTP dispatches to the device operations. All routes accept POST with a JSON body.
func (h *DeviceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeErrorBody(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	raw, err := decodeDeviceRequest(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	deviceID, err := directory.NormalizeID(raw)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !h.limiter.Allow(deviceID) {
		writeRateLimited(w)
		return
	}

	switch r.URL.Path {
	case "/api/devices/register":
		h.register(w, r, deviceID)
	case "/api/devices/verify":
		h.verify(w, r, deviceID)
	case "/api/devices/link":
		h.link(w, r, deviceID)
	default:
		notFound(w, r)
	}
}

// register links the new device to the caller's account when a session cookie is present.
func (h *DeviceHandler) register(w http.ResponseWriter, r *http.Request, deviceID string) {
	var credentialID *string
	if id, err := h.sessions.CredentialID(r); err == nil {
		credentialID = &id
	}

	if err := h.devices.Register(r.Context(), deviceID, credentialID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "linkedToAccount": credentialID != nil})
}

func (h *DeviceHandler) verify(w http.ResponseWriter, r *http.Request, deviceID string) {
	v, err := h.devices.Verify(r.Context(), deviceID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !v.Valid {
		writeJSON(w, http.StatusUnauthorized, v)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *DeviceHandler) link(w http.ResponseWriter, r *http.Request, deviceID string) {
	credentialID, err := h.sessions.CredentialID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	err = h.devices.Link(r.Context(), deviceID, credentialID)
	if errors.Is(err, shared.ErrNotFound) {
		writeErrorBody(w, http.StatusNotFound, string(shared.KindNotFound), shared.SafeMessage(err))
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
