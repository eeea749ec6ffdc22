package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/infra"
	"server/internal/middleware"
)

func NewRouter(app *handlers.App, jwtSecret string, logger infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
	)

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(jwtSecret))

		r.Route("/v1/jobs", func(r chi.Router) {
			r.Post("/", app.CreateJob)
			r.Get("/", app.ListJobs)
			r.Get("/limits", app.GenerationLimits)
			r.Get("/{id}", app.GetJob)
			r.Get("/{id}/history", app.JobHistory)
			r.Post("/{id}/retry", app.RetryJob)
			r.Delete("/{id}", app.DeleteJob)
		})
		r.Post("/v1/dev-mode", app.SetDevMode)
	})

	return r
}
