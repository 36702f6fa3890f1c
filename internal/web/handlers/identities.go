package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/unfaced/unfaced/internal/registry"
	"github.com/unfaced/unfaced/internal/store"
)

// IdentitiesHandler handles enrollment and identity lookup endpoints.
type IdentitiesHandler struct {
	registry *registry.Registry
}

// NewIdentitiesHandler creates a new identities handler.
func NewIdentitiesHandler(reg *registry.Registry) *IdentitiesHandler {
	return &IdentitiesHandler{registry: reg}
}

// identityResponse is the external identity view. Embeddings never leave the
// server.
type identityResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	HasVoice  bool      `json:"has_voice"`
	CreatedAt time.Time `json:"created_at"`
}

func toIdentityResponse(identity *store.Identity) identityResponse {
	return identityResponse{
		ID:        identity.ID,
		Name:      identity.Name,
		Phone:     identity.Phone,
		HasVoice:  len(identity.VoiceEmbedding) > 0,
		CreatedAt: identity.CreatedAt,
	}
}

// Enroll handles multipart enrollment: name, phone, a face image and an
// optional voice clip.
func (h *IdentitiesHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	face, _, err := readFormFile(r, "face", true)
	if err != nil {
		respondError(w, http.StatusBadRequest, "face media is required")
		return
	}
	voice, _, err := readFormFile(r, "voice", false)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid voice media")
		return
	}

	identity, err := h.registry.Enroll(r.Context(), registry.EnrollRequest{
		Name:  r.FormValue("name"),
		Phone: r.FormValue("phone"),
		Face:  face,
		Voice: voice,
	})
	if err != nil {
		log.Printf("enrollment of %q failed: %v", sanitizeForLog(r.FormValue("name")), err)
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toIdentityResponse(identity))
}

// loginRequest carries the (name, phone) credential pair.
type loginRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Login resolves a credential pair to the enrolled identity.
func (h *IdentitiesHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Name == "" || req.Phone == "" {
		respondError(w, http.StatusBadRequest, "name and phone are required")
		return
	}

	identity, err := h.registry.Find(r.Context(), req.Name, req.Phone)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toIdentityResponse(identity))
}

// List returns every enrolled identity in enrollment order.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	identities, err := h.registry.All(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	out := make([]identityResponse, 0, len(identities))
	for i := range identities {
		out = append(out, toIdentityResponse(&identities[i]))
	}
	respondJSON(w, http.StatusOK, out)
}
