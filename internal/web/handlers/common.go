package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/unfaced/unfaced/internal/biometric"
	"github.com/unfaced/unfaced/internal/consent"
	"github.com/unfaced/unfaced/internal/registry"
	"github.com/unfaced/unfaced/internal/store"
)

// maxUploadSize bounds multipart request bodies (enrollment media and submissions).
const maxUploadSize = 50 << 20

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps service errors onto HTTP statuses. Unknown errors
// become 500 with a generic message so internals do not leak.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrDuplicateIdentity):
		respondError(w, http.StatusConflict, "identity already exists")
	case errors.Is(err, consent.ErrForbidden), errors.Is(err, consent.ErrNotApprover):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, consent.ErrNotPending):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, consent.ErrInvalidInput), errors.Is(err, registry.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, biometric.ErrNoFaceDetected),
		errors.Is(err, biometric.ErrUnsupportedFormat),
		errors.Is(err, biometric.ErrTooShort):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, store.ErrConflict):
		respondError(w, http.StatusConflict, "concurrent update, please retry")
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// readFormFile reads one uploaded file from a parsed multipart form. Returns
// (nil, "", nil) when the field is absent and required is false.
func readFormFile(r *http.Request, field string, required bool) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) && !required {
			return nil, "", nil
		}
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	return data, header.Filename, nil
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
