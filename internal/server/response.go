package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotibridge/internal/shared"
)

const maxRequestBody = 4 << 10

// errorResponse is the standard error response body.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"kind":"internal","message":"internal server error"}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeErrorBody(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Kind: kind, Message: message}})
}

// writeError maps err to a status code and writes a structured error with a message safe for clients.
// Internal and upstream failures are logged with full detail.
func writeError(w http.ResponseWriter, logger *log.Logger, err error) {
	kind := shared.KindOf(err)
	status := statusFor(kind)

	if status >= http.StatusInternalServerError {
		var upstream *shared.UpstreamError
		if errors.As(err, &upstream) {
			logger.Error("upstream request failed", "status", upstream.Status, "body", string(upstream.Body))
		} else {
			logger.Error("request failed", "kind", kind, "error", err)
		}
	}

	writeErrorBody(w, status, string(kind), shared.SafeMessage(err))
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(kind shared.Kind) int {
	switch kind {
	case shared.KindValidation:
		return http.StatusBadRequest
	case shared.KindNotFound, shared.KindNotLinked, shared.KindNotAuthenticated, shared.KindUpstreamAuth:
		return http.StatusUnauthorized
	case shared.KindConstraintViolation:
		return http.StatusConflict
	case shared.KindUpstreamTransient, shared.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// deviceRequest is the body accepted by the device routes. Firmware sends "uuid", the web app "deviceId".
type deviceRequest struct {
	DeviceID string `json:"deviceId"`
	UUID     string `json:"uuid"`
}

func (d deviceRequest) id() string {
	if d.DeviceID != "" {
		return d.DeviceID
	}
	return d.UUID
}

// decodeDeviceRequest reads a bounded JSON body.
func decodeDeviceRequest(r *http.Request) (string, error) {
	var body deviceRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: malformed JSON body", shared.ErrValidation)
	}
	return body.id(), nil
}
