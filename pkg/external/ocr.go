package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/medsafe-server/internal/domain"
)

// Extraction runs a vision model upstream, so the default timeout is far
// longer than the other clients.
const defaultOCRTimeout = 60 * time.Second

// OCRClient submits prescription images to the extraction service and
// returns the structured payload. When the service could not produce
// structured data it responds with a raw_response fallback, which is
// passed through untouched for the text parsing path.
type OCRClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewOCRClient creates a new prescription extraction client.
func NewOCRClient(config domain.OCRConfig) *OCRClient {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultOCRTimeout
	}
	return &OCRClient{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ExtractPrescription uploads the image as multipart form data and
// decodes the structured extraction response.
func (c *OCRClient) ExtractPrescription(ctx context.Context, image []byte, mimeType string) (*domain.ExtractedPrescription, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("prescription image is empty")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", "prescription")
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.WriteField("mime_type", mimeType); err != nil {
		return nil, fmt.Errorf("failed to write mime type field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read extraction response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction service returned status %d", resp.StatusCode)
	}

	var extracted domain.ExtractedPrescription
	if err := json.Unmarshal(respBody, &extracted); err != nil {
		return nil, fmt.Errorf("failed to decode extraction response: %w", err)
	}

	return &extracted, nil
}
