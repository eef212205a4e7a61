package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"tattty/internal/domain"
	"tattty/internal/middleware"
)

const upstreamFailureMessage = "Upstream generation service failed"

// GenerateImages proxies one slot request to the hosted workflow and answers
// with {image} or {error}.
func (a *App) GenerateImages(w http.ResponseWriter, r *http.Request) {
	req := decodeGenerationRequest(r.Body)
	correlationID := a.correlationID()
	outcome := a.generate(r.Context(), req, correlationID)
	if outcome.Err != nil {
		a.error(w, outcome.HTTPStatus, clientMessage(outcome.Err))
		return
	}
	a.json(w, http.StatusOK, domain.GenerateImageResponse{Image: outcome.Image})
}

func (a *App) generate(ctx context.Context, req domain.GenerationRequest, correlationID string) domain.GenerationOutcome {
	log := a.Logger.With().
		Str("request_id", correlationID).
		Str("http_request_id", middleware.RequestIDFromContext(ctx)).
		Logger()

	if err := req.Validate(); err != nil {
		log.Error().Err(err).Str("provider", string(req.Provider)).Msg("rejected generation request")
		return domain.GenerationOutcome{Err: err, HTTPStatus: http.StatusBadRequest}
	}

	start := a.clock()
	image, err := a.Generator.Generate(ctx, req, correlationID)
	if err != nil {
		log.Error().Err(err).
			Str("provider", string(req.Provider)).
			Str("model", req.ModelID).
			Msg("error generating image")
		return domain.GenerationOutcome{Err: err, HTTPStatus: http.StatusInternalServerError}
	}

	log.Info().
		Str("provider", string(req.Provider)).
		Str("model", req.ModelID).
		Str("elapsed", a.clock().Sub(start).Round(100*time.Millisecond).String()).
		Msg("completed image request")
	return domain.GenerationOutcome{Image: image, HTTPStatus: http.StatusOK}
}

// decodeGenerationRequest reads the body field by field. A field of the wrong
// type reads as absent so one bad optional value does not discard the prompt;
// a body that is not a JSON object yields an empty request and fails
// validation.
func decodeGenerationRequest(body io.Reader) domain.GenerationRequest {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&fields); err != nil {
		return domain.GenerationRequest{}
	}
	str := func(key string) *string {
		var v *string
		if err := json.Unmarshal(fields[key], &v); err != nil {
			return nil
		}
		return v
	}
	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	return domain.GenerationRequest{
		Prompt:      deref(str("prompt")),
		Provider:    domain.Provider(deref(str("provider"))),
		ModelID:     deref(str("modelId")),
		Style:       str("style"),
		Color:       str("color"),
		AspectRatio: str("aspectRatio"),
	}
}

func (a *App) correlationID() string {
	if a.newID != nil {
		return a.newID()
	}
	return middleware.ShortID()
}

// clientMessage picks what the caller may see; upstream detail stays in the logs.
func clientMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidProvider):
		return err.Error()
	case errors.Is(err, domain.ErrNoImageData):
		return domain.ErrNoImageData.Error()
	case domain.IsUpstreamFailure(err):
		return upstreamFailureMessage
	default:
		return err.Error()
	}
}
