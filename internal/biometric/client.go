package biometric

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

const defaultEmbeddingURL = "http://localhost:8000"

// Extraction failures reported by the embedding service.
var (
	ErrNoFaceDetected    = errors.New("no face detected")
	ErrUnsupportedFormat = errors.New("unsupported media format")
	ErrTooShort          = errors.New("audio clip too short")
)

// FaceEmbedder extracts a fixed-length face vector from image bytes.
type FaceEmbedder interface {
	ExtractFaceEmbedding(ctx context.Context, media []byte) ([]float32, error)
}

// VoiceEmbedder extracts a fixed-length voice vector from audio bytes.
type VoiceEmbedder interface {
	ExtractVoiceEmbedding(ctx context.Context, audio []byte) ([]float32, error)
}

// Client computes face and voice embeddings using the embedding service.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new embedding service client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

// embeddingResponse represents a successful response from the embedding service.
type embeddingResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// errorResponse represents an error payload from the embedding service.
type errorResponse struct {
	Error string `json:"error"`
}

// postMultipartMedia constructs a multipart form with the media data and posts
// it to the given endpoint. The part carries an explicit Content-Type header
// based on magic byte detection.
func (c *Client) postMultipartMedia(ctx context.Context, endpoint string, media []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="media.bin"`)
	h.Set("Content-Type", DetectMIMEType(media))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(media); err != nil {
		return nil, fmt.Errorf("failed to write media data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, extractionError(resp.StatusCode, body)
	}

	return body, nil
}

// extractionError maps a service error payload to a typed extraction error.
func extractionError(status int, body []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		switch errResp.Error {
		case "no_face_detected":
			return ErrNoFaceDetected
		case "unsupported_format":
			return ErrUnsupportedFormat
		case "too_short":
			return ErrTooShort
		}
	}
	return fmt.Errorf("embedding service error (status %d): %s", status, string(body))
}

// parseEmbedding decodes and validates an embedding response body.
func parseEmbedding(body []byte) ([]float32, error) {
	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(embResp.Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	return embResp.Embedding, nil
}

// ExtractFaceEmbedding computes the face embedding for an image.
// Images larger than MaxImageSize are downscaled before upload.
func (c *Client) ExtractFaceEmbedding(ctx context.Context, media []byte) ([]float32, error) {
	if normalized, err := NormalizeImage(media, MaxImageSize); err == nil {
		media = normalized
	}

	body, err := c.postMultipartMedia(ctx, "/embed/face", media)
	if err != nil {
		return nil, err
	}
	return parseEmbedding(body)
}

// ExtractVoiceEmbedding computes the voice embedding for an audio clip.
func (c *Client) ExtractVoiceEmbedding(ctx context.Context, audio []byte) ([]float32, error) {
	body, err := c.postMultipartMedia(ctx, "/embed/voice", audio)
	if err != nil {
		return nil, err
	}
	return parseEmbedding(body)
}
