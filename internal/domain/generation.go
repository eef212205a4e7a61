package domain

import "time"

// SlotCount is the fixed number of result slots in one generation round.
const SlotCount = 2

// GenerationRequest is one outbound unit of work, built fresh per slot.
type GenerationRequest struct {
	Prompt      string   `json:"prompt"`
	Provider    Provider `json:"provider"`
	ModelID     string   `json:"modelId"`
	Style       *string  `json:"style,omitempty"`
	Color       *string  `json:"color,omitempty"`
	AspectRatio *string  `json:"aspectRatio,omitempty"`
}

// Validate checks the request before any network call is made.
func (r GenerationRequest) Validate() error {
	if r.Prompt == "" {
		return ErrInvalidRequest
	}
	if !r.Provider.Valid() {
		return ErrInvalidProvider
	}
	return nil
}

// GenerateImageResponse is the wire body of the generation endpoint.
type GenerateImageResponse struct {
	Image string `json:"image,omitempty"`
	Error string `json:"error,omitempty"`
}

// ResultSlot is one position of a round's result sequence.
type ResultSlot struct {
	Provider Provider `json:"provider"`
	Image    *string  `json:"image"`
	ModelID  string   `json:"modelId"`
}

// ProviderTiming is the wall-clock record of a provider's latest call.
type ProviderTiming struct {
	StartTime      time.Time      `json:"startTime"`
	CompletionTime *time.Time     `json:"completionTime,omitempty"`
	Elapsed        *time.Duration `json:"-"`
}

// ElapsedMillis returns the elapsed time in milliseconds and whether it is known.
func (t ProviderTiming) ElapsedMillis() (int64, bool) {
	if t.Elapsed == nil {
		return 0, false
	}
	return t.Elapsed.Milliseconds(), true
}

// FailureRecord is appended each time a slot's call fails.
type FailureRecord struct {
	Provider Provider `json:"provider"`
	Message  string   `json:"message"`
}

// GenerationOutcome is what the proxy produces for a single request.
type GenerationOutcome struct {
	Image      string
	Err        error
	HTTPStatus int
}
