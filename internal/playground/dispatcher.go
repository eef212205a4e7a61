package playground

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"tattty/internal/domain"
)

// GeneratePath is where the proxy serves slot requests.
const GeneratePath = "/generate-images"

// HTTPDispatcher posts slot requests to a running proxy.
type HTTPDispatcher struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPDispatcher targets the proxy at baseURL. A nil client uses
// http.DefaultClient, which imposes no timeout of its own.
func NewHTTPDispatcher(baseURL string, httpClient *http.Client) *HTTPDispatcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPDispatcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// GenerateImage sends req and returns the base64 image, or an error carrying
// the proxy's message.
func (d *HTTPDispatcher) GenerateImage(ctx context.Context, req domain.GenerationRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+GeneratePath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var out domain.GenerateImageResponse
	decodeErr := json.Unmarshal(raw, &out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && out.Error != "" {
			return "", errors.New(out.Error)
		}
		return "", fmt.Errorf("Server error: %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode response: %w", decodeErr)
	}
	return out.Image, nil
}
