// Package handlers contains the HTTP endpoints. Handlers stay thin: decode,
// delegate to the service layer, map domain errors to status codes.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/service"
)

type App struct {
	Jobs   *service.JobService
	Quota  *service.QuotaGuard
	DB     *pgxpool.Pool
	Logger infra.Logger
}

func NewApp(jobs *service.JobService, quota *service.QuotaGuard, db *pgxpool.Pool, logger infra.Logger) *App {
	return &App{Jobs: jobs, Quota: quota, DB: db, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{"code": slug, "message": message},
	})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// domainError maps sentinel domain errors onto HTTP responses. Unknown errors
// are logged and surface as opaque 500s.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, domain.ErrQuotaExceeded):
		a.error(w, http.StatusForbidden, "quota_exceeded", err.Error())
	case errors.Is(err, domain.ErrInvalidPasskey):
		a.error(w, http.StatusForbidden, "invalid_passkey", err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		a.error(w, http.StatusBadRequest, "invalid_state", err.Error())
	case errors.Is(err, domain.ErrRetryLimitExceeded):
		a.error(w, http.StatusBadRequest, "retry_limit_exceeded", err.Error())
	default:
		a.Logger.Error().Err(err).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
