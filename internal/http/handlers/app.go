package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"tattty/internal/domain"
	"tattty/internal/infra"
)

// ImageGenerator produces a base64 image for one generation request.
type ImageGenerator interface {
	Generate(ctx context.Context, req domain.GenerationRequest, correlationID string) (string, error)
}

type App struct {
	Config    *infra.Config
	Logger    infra.Logger
	Generator ImageGenerator

	newID func() string
	now   func() time.Time
}

func NewApp(cfg *infra.Config, logger infra.Logger, generator ImageGenerator) *App {
	return &App{Config: cfg, Logger: logger, Generator: generator}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, domain.GenerateImageResponse{Error: message})
}

func (a *App) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}
