package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"salchimonster/restaurant-reports/auth"
	"salchimonster/restaurant-reports/models"
	"salchimonster/restaurant-reports/service/external"
)

type apiError struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeDetail(w http.ResponseWriter, statusCode int, detail string) {
	writeJSON(w, statusCode, apiError{Detail: detail})
}

var statusBySentinel = []struct {
	err    error
	status int
}{
	{models.ErrInvalidInput, http.StatusBadRequest},
	{models.ErrAlreadyAppealed, http.StatusBadRequest},
	{models.ErrNoLoss, http.StatusBadRequest},
	{models.ErrNoRefundAmount, http.StatusBadRequest},
	{models.ErrNotFound, http.StatusNotFound},
	{models.ErrTooLarge, http.StatusRequestEntityTooLarge},
	{models.ErrNoToken, http.StatusUnauthorized},
	{auth.ErrUnauthorized, http.StatusUnauthorized},
	{auth.ErrForbidden, http.StatusForbidden},
	{models.ErrNoCredentials, http.StatusServiceUnavailable},
	{models.ErrUnavailable, http.StatusServiceUnavailable},
}

// detail drops the sentinel suffix of wrapped errors: "Archivo no encontrado: no
// encontrado" is shown as "Archivo no encontrado".
func detail(err error, sentinel error) string {
	msg := err.Error()
	if trimmed := strings.TrimSuffix(msg, ": "+sentinel.Error()); trimmed != "" {
		return trimmed
	}

	return msg
}

func mapError(err error) (int, string) {
	var upstream *external.UpstreamError
	if errors.As(err, &upstream) {
		status := upstream.Status
		if status < 400 {
			status = http.StatusBadGateway
		}
		return status, upstream.Message
	}

	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			return s.status, detail(err, s.err)
		}
	}

	return http.StatusInternalServerError, "Error interno del servidor"
}

func writeError(w http.ResponseWriter, err error) {
	status, msg := mapError(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("API: %v", err)
	}
	writeDetail(w, status, msg)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &bodyError{err: err}
	}

	return nil
}

type bodyError struct {
	err error
}

func (e *bodyError) Error() string {
	return "Body debe ser JSON válido: " + models.ErrInvalidInput.Error()
}

func (e *bodyError) Unwrap() []error {
	return []error{models.ErrInvalidInput, e.err}
}
