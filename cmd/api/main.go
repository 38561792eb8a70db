package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rtc-signaling/internal/auth"
	"rtc-signaling/internal/calls"
	"rtc-signaling/internal/config"
	"rtc-signaling/internal/httpapi"
	"rtc-signaling/internal/presence"
	"rtc-signaling/internal/ws"
	"rtc-signaling/pkg/logger"
	"rtc-signaling/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Signaling core: process-wide registry and session store, injected
	// everywhere rather than accessed as globals.
	registry := presence.NewRegistry()
	hub := ws.NewHub(registry)
	historyRepo := calls.NewPostgresRepo(db)
	historyCache := httpapi.NewHistoryCache(rdb, cfg.Call.HistoryCacheTTL, log)
	slots := calls.NewRedisSlotLimiter(rdb, cfg.Call.MaxActivePerUser, log)

	callSvc := calls.NewService(calls.NewStore(), registry, hub, historyRepo, calls.ServiceConfig{
		RingTimeout: cfg.Call.RingTimeout,
		Slots:       slots,
		Cache:       historyCache,
		Logger:      log,
	})
	defer callSvc.Close()

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	wsHandler := &ws.Handler{
		Hub:                hub,
		Auth:               authManager,
		Calls:              callSvc,
		InsecureSkipVerify: cfg.WS.InsecureSkipVerify,
	}
	apiHandlers := httpapi.Handlers{
		Auth:     authManager,
		History:  historyRepo,
		Cache:    historyCache,
		Registry: registry,
		Calls:    callSvc,
	}

	registerRoutes(r, db, authManager, wsHandler, apiHandlers)

	// No Read/WriteTimeout: /ws connections are long-lived and carry their
	// own keepalive; per-write deadlines live in the websocket layer.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("signaling api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
