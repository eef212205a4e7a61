package workflow

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tattty/internal/domain"
	"tattty/internal/infra"
)

const (
	// DefaultEndpoint is the hosted workflow the generation requests go to.
	DefaultEndpoint = "https://api.dify.ai/mcp/server/u4cbxV8X77O1fKSZ/mcp"
	// DefaultTimeout stays under the hosting platform's execution ceiling.
	DefaultTimeout = 55 * time.Second

	DefaultStyle       = "Tattoo"
	DefaultColor       = "Black and Grey"
	DefaultAspectRatio = "1:1"

	userPrefix = "tattty-web-user-"
)

// Options configures the workflow client.
type Options struct {
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client posts generation requests to the hosted workflow endpoint and turns
// whatever comes back into a base64 image.
type Client struct {
	endpoint   string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     *infra.Logger
}

// PayloadInputs are the workflow's named input variables.
type PayloadInputs struct {
	Style       string `json:"style"`
	Color       string `json:"color"`
	AspectRatio string `json:"aspect_ratio"`
	GetTattied  string `json:"get_tatttied"`
}

// Payload is the blocking workflow request body.
type Payload struct {
	Inputs       PayloadInputs `json:"inputs"`
	ResponseMode string        `json:"response_mode"`
	User         string        `json:"user"`
}

// NewClient constructs a client, filling in defaults for zero options.
func NewClient(opts Options) *Client {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     strings.TrimSpace(opts.APIKey),
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logger,
	}
}

// HasCredentials reports whether requests carry a bearer token.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Endpoint returns the configured workflow URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// BuildPayload maps a generation request onto the workflow's input shape.
func BuildPayload(req domain.GenerationRequest, correlationID string) Payload {
	return Payload{
		Inputs: PayloadInputs{
			Style:       valueOr(req.Style, DefaultStyle),
			Color:       valueOr(req.Color, DefaultColor),
			AspectRatio: valueOr(req.AspectRatio, DefaultAspectRatio),
			GetTattied:  req.Prompt,
		},
		ResponseMode: "blocking",
		User:         userPrefix + correlationID,
	}
}

// Generate runs one blocking workflow call and returns the image as base64.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest, correlationID string) (string, error) {
	body, err := json.Marshal(BuildPayload(req, correlationID))
	if err != nil {
		return "", fmt.Errorf("workflow: encode request: %w", err)
	}

	raw, err := c.post(ctx, body, correlationID)
	if err != nil {
		return "", err
	}
	c.logger.Debug().
		Str("request_id", correlationID).
		RawJSON("response", compactJSON(raw)).
		Msg("workflow: received response")

	return c.Resolve(ctx, raw, correlationID)
}

func (c *Client) post(ctx context.Context, body []byte, correlationID string) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("workflow: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Info().
		Str("request_id", correlationID).
		Str("endpoint", c.endpoint).
		Msg("workflow: sending request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.wrapTransportErr(callCtx, "http request", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.wrapTransportErr(callCtx, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upstream := &domain.UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		c.logger.Error().
			Str("request_id", correlationID).
			Int("status", resp.StatusCode).
			Str("body", upstream.Body).
			Msg("workflow: upstream rejected request")
		return nil, upstream
	}
	return raw, nil
}

func (c *Client) wrapTransportErr(callCtx context.Context, op string, err error) error {
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("workflow: %s after %s: %w", op, c.timeout, errors.Join(domain.ErrTimeout, err))
	}
	return fmt.Errorf("workflow: %s: %w", op, err)
}

// Resolve extracts the image from a decoded workflow response body, fetching
// and re-encoding it when only a URL was given. A failed fetch is logged and
// falls through to the remaining inline sources.
func (c *Client) Resolve(ctx context.Context, body []byte, correlationID string) (string, error) {
	ext, shape, err := Normalize(body)
	if err != nil {
		return "", err
	}
	log := c.logger.With().Str("request_id", correlationID).Str("shape", shape).Logger()

	imageBase64 := ext.ImageBase64
	if ext.FileURL != "" {
		log.Info().Str("url", ext.FileURL).Msg("workflow: fetching image")
		data, err := c.fetch(ctx, ext.FileURL)
		if err != nil {
			log.Error().Err(err).Msg("workflow: image fetch failed")
		} else {
			imageBase64 = base64.StdEncoding.EncodeToString(data)
		}
	}
	if imageBase64 == "" {
		imageBase64 = topLevelImage(body)
	}
	if imageBase64 == "" {
		log.Warn().Msg("workflow: no image found in response")
		return "", domain.ErrNoImageData
	}
	return imageBase64, nil
}

func (c *Client) fetch(ctx context.Context, fileURL string) ([]byte, error) {
	target, err := c.resolveURL(fileURL)
	if err != nil {
		return nil, &domain.ImageFetchError{URL: fileURL, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &domain.ImageFetchError{URL: target, Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ImageFetchError{URL: target, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.ImageFetchError{URL: target, StatusCode: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ImageFetchError{URL: target, Err: err}
	}
	return data, nil
}

// resolveURL makes root-relative file paths absolute against the endpoint origin.
func (c *Client) resolveURL(fileURL string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(fileURL))
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base, err := url.Parse(c.endpoint)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func topLevelImage(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	s, _ := asString(env.Image)
	return s
}

func valueOr(v *string, fallback string) string {
	if v == nil || *v == "" {
		return fallback
	}
	return *v
}

func compactJSON(raw []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return []byte(`null`)
	}
	return buf.Bytes()
}
