package main

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"lg/fitai-go-api/internal/core"
)

// Handler holds shared dependencies for all route handlers.
type Handler struct {
	users    userLookup
	svc      *core.Service
	sessions *sessionStore
}

/* ─── Database helpers ────────────────────────────────────────────────── */

// queryOne runs a query and scans the first row into T using RowToStructByName.
// Logs query and scan errors for debugging (e.g. struct/column mismatches).
func queryOne[T any](pool *pgxpool.Pool, ctx context.Context, sql string, args pgx.NamedArgs) (T, error) {
	rows, err := pool.Query(ctx, sql, args)
	if err != nil {
		log.Error().Err(err).Msg("queryOne: query")
		var zero T
		return zero, err
	}
	result, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		log.Error().Err(err).Msg("queryOne: scan")
	}
	return result, err
}

// apiError returns a consistent JSON error response: {"error": "message"}.
func apiError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// apiErrorWith adds extra fields (a verdict, a report) next to the message.
func apiErrorWith(c *gin.Context, status int, message string, extra gin.H) {
	body := gin.H{"error": message}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

/* ─── Routes ────────────────────────────────────────────────────────── */

// registerRoutes registers all API routes on the router.
func (h *Handler) registerRoutes(router *gin.Engine) {
	// Public routes
	router.POST("/api/login", h.login)

	// Authenticated routes
	h.registerOnboardingRoutes(router.Group("/api", h.authMiddleware()))
}

func (h *Handler) registerOnboardingRoutes(api *gin.RouterGroup) {
	api.GET("/onboarding/state", h.getOnboardingState)
	api.PUT("/onboarding/sections/:section", h.putSection)
	api.POST("/onboarding/sections/:section/complete", h.completeSection)
	api.POST("/onboarding/restore", h.restoreSession)
	api.POST("/onboarding/evaluate", h.evaluate)
	api.POST("/onboarding/compute", h.compute)
	api.POST("/onboarding/finalize", h.finalize)
	api.POST("/onboarding/resync", h.resync)
}
