package workflow

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"tattty/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestBuildPayloadDefaults(t *testing.T) {
	payload := BuildPayload(domain.GenerationRequest{Prompt: "a koi fish", Provider: domain.ProviderMCP}, "abc123")
	if payload.Inputs.Style != DefaultStyle || payload.Inputs.Color != DefaultColor || payload.Inputs.AspectRatio != DefaultAspectRatio {
		t.Fatalf("defaults not applied: %+v", payload.Inputs)
	}
	if payload.Inputs.GetTattied != "a koi fish" {
		t.Fatalf("prompt mismatch: %q", payload.Inputs.GetTattied)
	}
	if payload.ResponseMode != "blocking" {
		t.Fatalf("response mode mismatch: %q", payload.ResponseMode)
	}
	if payload.User != "tattty-web-user-abc123" {
		t.Fatalf("user mismatch: %q", payload.User)
	}

	payload = BuildPayload(domain.GenerationRequest{
		Prompt:      "rose",
		Style:       strPtr("Neo Traditional"),
		Color:       strPtr("Full Color"),
		AspectRatio: strPtr("9:16"),
	}, "x")
	if payload.Inputs.Style != "Neo Traditional" || payload.Inputs.Color != "Full Color" || payload.Inputs.AspectRatio != "9:16" {
		t.Fatalf("explicit values lost: %+v", payload.Inputs)
	}
}

func TestClientGenerateFetchesFileURL(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4e, 0x47}
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/workflow":
			if got := r.Header.Get("Authorization"); got != "Bearer secret" {
				t.Errorf("unexpected auth header: %q", got)
			}
			if got := r.Header.Get("Content-Type"); got != "application/json" {
				t.Errorf("unexpected content type: %q", got)
			}
			var payload Payload
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Errorf("decode payload: %v", err)
			}
			if payload.Inputs.GetTattied != "dragon" {
				t.Errorf("prompt mismatch: %q", payload.Inputs.GetTattied)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"files": []map[string]string{{"url": srv.URL + "/files/out.png"}}},
			})
		case "/files/out.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(png)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewClient(Options{Endpoint: srv.URL + "/workflow", APIKey: "secret"})
	got, err := client.Generate(context.Background(), domain.GenerationRequest{Prompt: "dragon", Provider: domain.ProviderMCP}, "rid")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if want := base64.StdEncoding.EncodeToString(png); got != want {
		t.Fatalf("image mismatch: got %q want %q", got, want)
	}
}

func TestClientOmitsAuthorizationWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Authorization"]; ok {
			t.Errorf("authorization header should be absent")
		}
		_, _ = w.Write([]byte(`{"image":"BASE64"}`))
	}))
	defer srv.Close()

	client := NewClient(Options{Endpoint: srv.URL})
	if client.HasCredentials() {
		t.Fatalf("client should not report credentials")
	}
	got, err := client.Generate(context.Background(), domain.GenerationRequest{Prompt: "p"}, "rid")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if got != "BASE64" {
		t.Fatalf("image mismatch: %q", got)
	}
}

func TestClientResolvesRelativeFileURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/files/rel.png" {
			_, _ = w.Write([]byte("img"))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"outputs":{"image":"/files/rel.png"}}}`))
	}))
	defer srv.Close()

	client := NewClient(Options{Endpoint: srv.URL + "/mcp"})
	got, err := client.Generate(context.Background(), domain.GenerationRequest{Prompt: "p"}, "rid")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if got != base64.StdEncoding.EncodeToString([]byte("img")) {
		t.Fatalf("image mismatch: %q", got)
	}
}

func TestClientUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("gateway exploded"))
	}))
	defer srv.Close()

	client := NewClient(Options{Endpoint: srv.URL})
	_, err := client.Generate(context.Background(), domain.GenerationRequest{Prompt: "p"}, "rid")
	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.StatusCode != http.StatusBadGateway || upstream.Body != "gateway exploded" {
		t.Fatalf("unexpected upstream error: %+v", upstream)
	}
	if !domain.IsUpstreamFailure(err) {
		t.Fatalf("expected upstream failure classification")
	}
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(Options{Endpoint: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := client.Generate(context.Background(), domain.GenerationRequest{Prompt: "p"}, "rid")
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !domain.IsUpstreamFailure(err) {
		t.Fatalf("timeout should count as upstream failure")
	}
}

func TestClientInlineDataSkipsFetch(t *testing.T) {
	var fetches int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			atomic.AddInt32(&fetches, 1)
		}
		_, _ = w.Write([]byte(`{"result":{"content":[{"type":"image","data":"BASE64"}]}}`))
	}))
	defer srv.Close()

	client := NewClient(Options{Endpoint: srv.URL})
	got, err := client.Generate(context.Background(), domain.GenerationRequest{Prompt: "p"}, "rid")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if got != "BASE64" {
		t.Fatalf("image mismatch: %q", got)
	}
	if n := atomic.LoadInt32(&fetches); n != 0 {
		t.Fatalf("expected no image fetch, got %d", n)
	}
}

func TestResolveFetchFailureFallsThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(Options{Endpoint: srv.URL})

	got, err := client.Resolve(context.Background(), []byte(`{"files":[{"url":"`+srv.URL+`/missing.png"}],"image":"FALLBACK"}`), "rid")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got != "FALLBACK" {
		t.Fatalf("expected top-level image fallback, got %q", got)
	}

	_, err = client.Resolve(context.Background(), []byte(`{"files":[{"url":"`+srv.URL+`/missing.png"}]}`), "rid")
	if !errors.Is(err, domain.ErrNoImageData) {
		t.Fatalf("expected ErrNoImageData, got %v", err)
	}
}

func TestResolveNoImageData(t *testing.T) {
	client := NewClient(Options{})
	for _, body := range []string{`{"status":"done"}`, `[]`, `"done"`, `42`, `null`} {
		t.Run(body, func(t *testing.T) {
			_, err := client.Resolve(context.Background(), []byte(body), "rid")
			if !errors.Is(err, domain.ErrNoImageData) {
				t.Fatalf("expected ErrNoImageData, got %v", err)
			}
			if err.Error() != "No image data found in response. Check server logs." {
				t.Fatalf("unexpected message: %q", err.Error())
			}
		})
	}
}
