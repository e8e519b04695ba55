package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"lg/fitai-go-api/internal/config"
	"lg/fitai-go-api/internal/core"
	"lg/fitai-go-api/internal/store/localcache"
	"lg/fitai-go-api/internal/store/remote"
	"lg/fitai-go-api/internal/syncer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	cfg.SetupLogging()
	if cfg.DBURL == "" {
		log.Fatal().Msg("DB_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := remote.Connect(ctx, cfg.DBURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	defer pool.Close()
	log.Info().Msg("DB pool ready")

	cache, err := localcache.Open(cfg.CachePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.CachePath).Msg("open local cache")
	}
	defer cache.Close()

	coord := syncer.New(cache, remote.New(pool), syncer.Options{
		Timeout:       cfg.SyncTimeout,
		MaxConcurrent: cfg.SyncConcurrency,
	})
	sessions := newSessionStore(cache, cfg.AutosaveDelay)
	svc := core.New(coord, cache, core.Options{
		AutoResync: cfg.AutoResync,
		OnResync: func(userID string, rep *syncer.Report, err error) {
			if t, ok := sessions.lookup(userID); ok {
				t.RecordSync(rep, nil)
			}
		},
	})

	router := gin.Default()
	router.SetTrustedProxies(nil)
	h := &Handler{users: pgUsers{db: pool}, svc: svc, sessions: sessions}
	h.registerRoutes(router)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	svc.Close()
	sessions.closeAll(shutdownCtx)
}
