package httpapi

import (
	"net/http"
	"time"

	"tattty/internal/http/handlers"
	"tattty/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(app.Config.CORSAllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)

	limit := middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute)
	generate := func(r chi.Router) {
		r.Use(limit)
		if app.Config.MaxRequestBytes > 0 {
			r.Use(chimw.RequestSize(app.Config.MaxRequestBytes))
		}
		r.Post("/", app.GenerateImages)
	}
	r.Route("/generate-images", generate)
	r.Route("/api/generate-images", generate)

	return r
}
