package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"img2img/internal/http/handlers"
	"img2img/internal/middleware"
)

// Options carries the cross-cutting settings the router needs besides the
// handlers themselves.
type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	RateLimit      int
	CountryLookup  middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Country(opts.CountryLookup),
		middleware.Logger(app.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.RateLimit(opts.RateLimit, time.Minute),
	)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/images/*", app.ImageProxy)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(opts.JWTSecret))

			r.Get("/models", app.Models)
			r.Post("/generate", app.Generate)
			r.Route("/tasks", func(r chi.Router) {
				r.Post("/", app.CreateTask)
				r.Get("/", app.ListTasks)
				r.Get("/{id}", app.GetTask)
				r.Delete("/{id}", app.DeleteTask)
				r.Get("/{id}/archive", app.TaskArchive)
			})
		})
	})

	return r
}
