package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unfaced/unfaced/internal/consent"
)

// SubmissionsHandler handles media intake and the consent decision endpoints.
type SubmissionsHandler struct {
	consent *consent.Service
}

// NewSubmissionsHandler creates a new submissions handler.
func NewSubmissionsHandler(svc *consent.Service) *SubmissionsHandler {
	return &SubmissionsHandler{consent: svc}
}

// Submit handles multipart media uploads: a file and the uploader's name.
func (h *SubmissionsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	media, filename, err := readFormFile(r, "file", true)
	if err != nil {
		respondError(w, http.StatusBadRequest, "media file is required")
		return
	}

	sub, err := h.consent.Submit(r.Context(), consent.SubmitRequest{
		Media:        media,
		Filename:     filename,
		UploaderName: r.FormValue("uploader_name"),
	})
	if err != nil {
		log.Printf("intake of %q failed: %v", sanitizeForLog(filename), err)
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sub)
}

// Pending lists submissions awaiting a decision from the named identity.
func (h *SubmissionsHandler) Pending(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name query parameter is required")
		return
	}

	subs, err := h.consent.ListPendingFor(r.Context(), name)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, subs)
}

// Approved lists approved submissions the named identity uploaded or appears in.
func (h *SubmissionsHandler) Approved(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name query parameter is required")
		return
	}

	subs, err := h.consent.ListApproved(r.Context(), name)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, subs)
}

// decisionRequest names the identity approving or vetoing.
type decisionRequest struct {
	Name string `json:"name"`
}

func decodeDecision(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return "", false
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return "", false
	}
	return req.Name, true
}

// Approve records one approval on a pending submission.
func (h *SubmissionsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	name, ok := decodeDecision(w, r)
	if !ok {
		return
	}

	sub, err := h.consent.Approve(r.Context(), chi.URLParam(r, "id"), name)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

// Reject vetoes a pending submission.
func (h *SubmissionsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	name, ok := decodeDecision(w, r)
	if !ok {
		return
	}

	sub, err := h.consent.Reject(r.Context(), chi.URLParam(r, "id"), name)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

// Delete removes a pending submission on behalf of its uploader.
func (h *SubmissionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name query parameter is required")
		return
	}

	if err := h.consent.Delete(r.Context(), chi.URLParam(r, "id"), name); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Media streams the stored blob of a submission to its uploader or a matched
// identity.
func (h *SubmissionsHandler) Media(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name query parameter is required")
		return
	}

	sub, f, err := h.consent.OpenMedia(r.Context(), chi.URLParam(r, "id"), name)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	defer f.Close()

	// Strip the "<id>_" prefix back off for the download name.
	download := strings.TrimPrefix(filepath.Base(sub.FileLocation), sub.ID+"_")
	http.ServeContent(w, r, download, time.Time{}, f)
}
