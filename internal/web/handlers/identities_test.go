package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthCheck(t *testing.T) {
	recorder := httptest.NewRecorder()
	HealthCheck(recorder, httptest.NewRequest("GET", "/api/v1/health", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")
}

func TestEnroll(t *testing.T) {
	s := setupStack(t)

	req := multipartRequest(t, "/api/v1/identities",
		map[string]string{"name": "Alice", "phone": "555-0100"},
		map[string][]byte{"face": []byte("selfie"), "voice": []byte("clip")},
	)
	recorder := s.do(t, req)
	assertStatusCode(t, recorder, http.StatusCreated)

	var identity struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Phone    string `json:"phone"`
		HasVoice bool   `json:"has_voice"`
	}
	parseJSONResponse(t, recorder, &identity)
	if identity.ID == "" || identity.Name != "Alice" || !identity.HasVoice {
		t.Errorf("unexpected enrollment response: %+v", identity)
	}

	// Embeddings must never appear in the response.
	if body := recorder.Body.String(); strings.Contains(body, "embedding") {
		t.Errorf("response leaks embeddings: %s", body)
	}
}

func TestEnrollValidation(t *testing.T) {
	s := setupStack(t)

	t.Run("MissingFace", func(t *testing.T) {
		req := multipartRequest(t, "/api/v1/identities",
			map[string]string{"name": "Alice", "phone": "555-0100"}, nil)
		assertStatusCode(t, s.do(t, req), http.StatusBadRequest)
	})

	t.Run("MissingName", func(t *testing.T) {
		req := multipartRequest(t, "/api/v1/identities",
			map[string]string{"phone": "555-0100"},
			map[string][]byte{"face": []byte("selfie")})
		assertStatusCode(t, s.do(t, req), http.StatusBadRequest)
	})

	t.Run("Duplicate", func(t *testing.T) {
		enrollIdentity(t, s, "alice", []float32{1, 0, 0})
		req := multipartRequest(t, "/api/v1/identities",
			map[string]string{"name": "alice", "phone": "555-alice"},
			map[string][]byte{"face": []byte("selfie")})
		assertStatusCode(t, s.do(t, req), http.StatusConflict)
	})
}

func TestLogin(t *testing.T) {
	s := setupStack(t)
	enrollIdentity(t, s, "alice", []float32{1, 0, 0})

	t.Run("Success", func(t *testing.T) {
		req := jsonRequest(t, "POST", "/api/v1/auth/login",
			map[string]string{"name": "alice", "phone": "555-alice"})
		recorder := s.do(t, req)
		assertStatusCode(t, recorder, http.StatusOK)

		var identity struct {
			Name string `json:"name"`
		}
		parseJSONResponse(t, recorder, &identity)
		if identity.Name != "alice" {
			t.Errorf("unexpected login response: %+v", identity)
		}
	})

	t.Run("WrongPhone", func(t *testing.T) {
		req := jsonRequest(t, "POST", "/api/v1/auth/login",
			map[string]string{"name": "alice", "phone": "wrong"})
		assertStatusCode(t, s.do(t, req), http.StatusNotFound)
	})

	t.Run("MissingFields", func(t *testing.T) {
		req := jsonRequest(t, "POST", "/api/v1/auth/login", map[string]string{"name": "alice"})
		assertStatusCode(t, s.do(t, req), http.StatusBadRequest)
	})
}

func TestListIdentities(t *testing.T) {
	s := setupStack(t)
	enrollIdentity(t, s, "alice", []float32{1, 0, 0})
	enrollIdentity(t, s, "bob", []float32{0, 1, 0})

	recorder := s.do(t, httptest.NewRequest("GET", "/api/v1/identities", nil))
	assertStatusCode(t, recorder, http.StatusOK)

	var identities []struct {
		Name string `json:"name"`
	}
	parseJSONResponse(t, recorder, &identities)
	if len(identities) != 2 || identities[0].Name != "alice" || identities[1].Name != "bob" {
		t.Errorf("unexpected identity list: %+v", identities)
	}
}
