package biometric

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// Modality classifies what kind of media a submission carries.
type Modality string

const (
	ModalityImage       Modality = "image"
	ModalityAudioVideo  Modality = "audio_video"
	ModalityUnsupported Modality = "unsupported"
)

// MaxImageSize is the maximum dimension (width or height) sent to the embedding service.
const MaxImageSize = 1920

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".bmp": true,
}

var audioVideoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".webm": true, ".mkv": true,
	".wav": true, ".mp3": true, ".ogg": true, ".flac": true, ".m4a": true,
}

// ClassifyModality determines the media modality from the file name and content.
// Magic bytes win over the extension for images so a mislabelled upload still
// goes through the face path.
func ClassifyModality(filename string, data []byte) Modality {
	if mime := DetectMIMEType(data); strings.HasPrefix(mime, "image/") {
		return ModalityImage
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case imageExtensions[ext]:
		return ModalityImage
	case audioVideoExtensions[ext]:
		return ModalityAudioVideo
	default:
		return ModalityUnsupported
	}
}

// DetectMIMEType detects the MIME type from media data using magic bytes.
func DetectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	// WAV: 52 49 46 46 ... 57 41 56 45
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x41 && data[10] == 0x56 && data[11] == 0x45 {
		return "audio/wav"
	}
	return "application/octet-stream"
}

// NormalizeImage resizes an image to fit within maxSize while keeping aspect ratio.
// Returns JPEG-encoded bytes, or the original data unchanged if already small enough.
func NormalizeImage(data []byte, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxSize && height <= maxSize {
		return data, nil
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = int(float64(height) * float64(maxSize) / float64(width))
	} else {
		newHeight = maxSize
		newWidth = int(float64(width) * float64(maxSize) / float64(height))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}

	return buf.Bytes(), nil
}
