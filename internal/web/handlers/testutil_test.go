package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/unfaced/unfaced/internal/biometric/mock"
	"github.com/unfaced/unfaced/internal/consent"
	"github.com/unfaced/unfaced/internal/registry"
	"github.com/unfaced/unfaced/internal/store"
	"github.com/unfaced/unfaced/internal/store/jsonfile"
)

// testStack wires the full handler stack over a throwaway jsonfile store.
type testStack struct {
	router   *chi.Mux
	registry *registry.Registry
	consent  *consent.Service
	embedder *mock.Embedder
}

func setupStack(t *testing.T) *testStack {
	t.Helper()
	dir := t.TempDir()

	st, err := jsonfile.Open(dir)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	files, err := store.NewFileArea(dir)
	if err != nil {
		t.Fatalf("creating file area: %v", err)
	}

	embedder := &mock.Embedder{
		FaceEmbedding:  []float32{1, 0, 0},
		VoiceEmbedding: []float32{0, 1},
		FaceByContent:  make(map[string][]float32),
	}
	reg := registry.New(st, embedder, embedder)
	svc := consent.New(st, files, embedder, reg, 0.4)

	identitiesHandler := NewIdentitiesHandler(reg)
	submissionsHandler := NewSubmissionsHandler(svc)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthCheck)
		r.Post("/identities", identitiesHandler.Enroll)
		r.Get("/identities", identitiesHandler.List)
		r.Post("/auth/login", identitiesHandler.Login)
		r.Post("/submissions", submissionsHandler.Submit)
		r.Get("/submissions/pending", submissionsHandler.Pending)
		r.Get("/submissions/approved", submissionsHandler.Approved)
		r.Post("/submissions/{id}/approve", submissionsHandler.Approve)
		r.Post("/submissions/{id}/reject", submissionsHandler.Reject)
		r.Delete("/submissions/{id}", submissionsHandler.Delete)
		r.Get("/submissions/{id}/media", submissionsHandler.Media)
	})

	return &testStack{router: r, registry: reg, consent: svc, embedder: embedder}
}

func (s *testStack) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	s.router.ServeHTTP(recorder, req)
	return recorder
}

// multipartRequest builds a multipart POST with form fields and file parts.
func multipartRequest(t *testing.T, url string, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("writing field %s: %v", k, err)
		}
	}
	for field, data := range files {
		part, err := writer.CreateFormFile(field, field+".jpg")
		if err != nil {
			t.Fatalf("creating file part %s: %v", field, err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("writing file part %s: %v", field, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}

	req := httptest.NewRequest("POST", url, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, url string, payload any) *http.Request {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshaling payload: %v", err)
	}
	req := httptest.NewRequest(method, url, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d: %s", expected, recorder.Code, recorder.Body.String())
	}
}

func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	if ct := recorder.Header().Get("Content-Type"); ct != expected {
		t.Errorf("expected Content-Type %s, got %s", expected, ct)
	}
}

func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), out); err != nil {
		t.Fatalf("parsing response %q: %v", recorder.Body.String(), err)
	}
}

// enrollIdentity registers an identity whose face embedding the mock serves
// for the given media bytes.
func enrollIdentity(t *testing.T, s *testStack, name string, embedding []float32) {
	t.Helper()
	media := []byte("selfie-" + name)
	s.embedder.FaceByContent[string(media)] = embedding

	req := multipartRequest(t, "/api/v1/identities",
		map[string]string{"name": name, "phone": "555-" + name},
		map[string][]byte{"face": media},
	)
	recorder := s.do(t, req)
	assertStatusCode(t, recorder, http.StatusCreated)
}

// submitMedia uploads a JPEG resolved to the given face embedding and returns
// the created submission.
func submitMedia(t *testing.T, s *testStack, uploader string, embedding []float32) *store.Submission {
	t.Helper()
	media := testJPEG(t)
	s.embedder.FaceByContent[string(media)] = embedding

	req := multipartRequest(t, "/api/v1/submissions",
		map[string]string{"uploader_name": uploader},
		map[string][]byte{"file": media},
	)
	recorder := s.do(t, req)
	assertStatusCode(t, recorder, http.StatusCreated)

	var sub store.Submission
	parseJSONResponse(t, recorder, &sub)
	return &sub
}
