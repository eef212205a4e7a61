package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest  = errors.New("Invalid request parameters")
	ErrInvalidProvider = errors.New("Invalid provider")
	ErrNoImageData     = errors.New("No image data found in response. Check server logs.")
	ErrTimeout         = errors.New("workflow request timed out")
)

// UpstreamError reports a non-2xx answer from the workflow endpoint. Body holds
// the raw response text and must only ever reach server logs.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("MCP server responded with %d: %s", e.StatusCode, e.Body)
}

// ImageFetchError is raised when a resolved file URL could not be downloaded.
// It is never fatal on its own.
type ImageFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ImageFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch image %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch image %s: status %d", e.URL, e.StatusCode)
}

func (e *ImageFetchError) Unwrap() error {
	return e.Err
}

// IsUpstreamFailure reports whether err came from the workflow endpoint
// itself, either as a bad status or a blown deadline.
func IsUpstreamFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var upstream *UpstreamError
	return errors.As(err, &upstream)
}
