package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"tattty/internal/domain"
	"tattty/internal/infra"
)

type stubGenerator struct {
	mu      sync.Mutex
	image   string
	err     error
	calls   int
	lastReq domain.GenerationRequest
	lastID  string
}

func (s *stubGenerator) Generate(ctx context.Context, req domain.GenerationRequest, correlationID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastReq = req
	s.lastID = correlationID
	return s.image, s.err
}

func newTestApp(gen ImageGenerator, logs io.Writer) *App {
	if logs == nil {
		logs = io.Discard
	}
	app := NewApp(&infra.Config{}, zerolog.New(logs), gen)
	app.newID = func() string { return "corr1234" }
	return app
}

func postGenerate(t *testing.T, app *App, body string) (*httptest.ResponseRecorder, domain.GenerateImageResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/generate-images", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	app.GenerateImages(rec, req)

	var resp domain.GenerateImageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, resp
}

func TestGenerateImagesValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "empty prompt", body: `{"prompt":"","provider":"mcp","modelId":"default"}`, wantMsg: "Invalid request parameters"},
		{name: "missing prompt", body: `{"provider":"mcp"}`, wantMsg: "Invalid request parameters"},
		{name: "empty prompt checked before provider", body: `{"prompt":"","provider":"openai"}`, wantMsg: "Invalid request parameters"},
		{name: "unsupported provider", body: `{"prompt":"wolf","provider":"openai","modelId":"x"}`, wantMsg: "Invalid provider"},
		{name: "missing provider", body: `{"prompt":"wolf"}`, wantMsg: "Invalid provider"},
		{name: "malformed body", body: `{"prompt":`, wantMsg: "Invalid request parameters"},
		{name: "numeric prompt", body: `{"prompt":7,"provider":"mcp"}`, wantMsg: "Invalid request parameters"},
		{name: "array body", body: `["wolf"]`, wantMsg: "Invalid request parameters"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gen := &stubGenerator{image: "unused"}
			rec, resp := postGenerate(t, newTestApp(gen, nil), tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if resp.Error != tc.wantMsg {
				t.Fatalf("error = %q, want %q", resp.Error, tc.wantMsg)
			}
			if gen.calls != 0 {
				t.Fatalf("generator called %d times, want 0", gen.calls)
			}
		})
	}
}

func TestGenerateImagesSuccess(t *testing.T) {
	gen := &stubGenerator{image: "BASE64"}
	body := `{"prompt":"a swallow","provider":"mcp","modelId":"default","style":"Traditional","color":null,"aspectRatio":"4:5"}`
	rec, resp := postGenerate(t, newTestApp(gen, nil), body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp.Image != "BASE64" || resp.Error != "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gen.lastID != "corr1234" {
		t.Fatalf("correlation id = %q", gen.lastID)
	}
	if gen.lastReq.Style == nil || *gen.lastReq.Style != "Traditional" {
		t.Fatalf("style not forwarded: %+v", gen.lastReq.Style)
	}
	if gen.lastReq.Color != nil {
		t.Fatalf("null color should stay nil, got %q", *gen.lastReq.Color)
	}
	if gen.lastReq.AspectRatio == nil || *gen.lastReq.AspectRatio != "4:5" {
		t.Fatalf("aspect ratio not forwarded")
	}
}

func TestGenerateImagesWrongTypedOptionalField(t *testing.T) {
	gen := &stubGenerator{image: "BASE64"}
	rec, _ := postGenerate(t, newTestApp(gen, nil), `{"prompt":"koi","provider":"mcp","style":5,"color":["red"],"aspectRatio":"3:4"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gen.lastReq.Prompt != "koi" || gen.lastReq.Provider != domain.ProviderMCP {
		t.Fatalf("request not forwarded: %+v", gen.lastReq)
	}
	if gen.lastReq.Style != nil || gen.lastReq.Color != nil {
		t.Fatalf("wrongly typed fields should read as absent: %+v", gen.lastReq)
	}
	if gen.lastReq.AspectRatio == nil || *gen.lastReq.AspectRatio != "3:4" {
		t.Fatalf("aspect ratio not forwarded")
	}
}

func TestGenerateImagesFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantMsg  string
		leakText string
	}{
		{
			name:    "no image data",
			err:     domain.ErrNoImageData,
			wantMsg: "No image data found in response. Check server logs.",
		},
		{
			name:     "upstream error hides body",
			err:      fmt.Errorf("wrapped: %w", &domain.UpstreamError{StatusCode: 502, Body: "secret upstream detail"}),
			wantMsg:  upstreamFailureMessage,
			leakText: "secret upstream detail",
		},
		{
			name:    "timeout",
			err:     fmt.Errorf("workflow: http request: %w", errors.Join(domain.ErrTimeout, context.DeadlineExceeded)),
			wantMsg: upstreamFailureMessage,
		},
		{
			name:    "other error surfaces message",
			err:     errors.New("workflow: decode response: unexpected EOF"),
			wantMsg: "workflow: decode response: unexpected EOF",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var logs bytes.Buffer
			gen := &stubGenerator{err: tc.err}
			rec, resp := postGenerate(t, newTestApp(gen, &logs), `{"prompt":"owl","provider":"mcp","modelId":"default"}`)
			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", rec.Code)
			}
			if resp.Error != tc.wantMsg {
				t.Fatalf("error = %q, want %q", resp.Error, tc.wantMsg)
			}
			if tc.leakText != "" {
				if strings.Contains(rec.Body.String(), tc.leakText) {
					t.Fatalf("response leaked upstream detail: %s", rec.Body.String())
				}
				if !strings.Contains(logs.String(), tc.leakText) {
					t.Fatalf("expected detail in server logs, got %s", logs.String())
				}
			}
		})
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestApp(&stubGenerator{}, nil).Health(rec, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health response: %d %s", rec.Code, rec.Body.String())
	}
}
