package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"finitefield.org/loginform/internal/loginform/config"
	"finitefield.org/loginform/internal/loginform/httpserver"
	"finitefield.org/loginform/internal/loginform/i18n"
	"finitefield.org/loginform/internal/loginform/observability"
	"finitefield.org/loginform/internal/loginform/users"
)

func main() {
	rootCtx := context.Background()

	cfg, err := config.Load(rootCtx)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	fetcher, err := users.NewHTTPFetcher(cfg.Users.Endpoint, nil, cfg.Users.FetchTimeout)
	if err != nil {
		logger.Fatal("init user fetcher", zap.Error(err))
	}

	bundle, err := i18n.Default(cfg.Locale)
	if err != nil {
		logger.Fatal("load locales", zap.Error(err))
	}

	if len(cfg.Forms.HashKey) == 0 {
		logger.Warn("LOGIN_FORM_HASH_KEY not set; form tokens will not survive a restart")
	}

	srv, err := httpserver.New(httpserver.Config{
		Address:          cfg.Server.Address,
		BasePath:         cfg.Server.BasePath,
		Fetcher:          fetcher,
		Logger:           logger,
		Bundle:           bundle,
		Locale:           cfg.Locale,
		FetchTimeout:     cfg.Users.FetchTimeout,
		FormIdleTTL:      cfg.Forms.IdleTTL,
		FormCapacity:     cfg.Forms.Capacity,
		PollWindow:       cfg.Forms.PollWindow,
		PollDelay:        cfg.Forms.PollDelay,
		HashKey:          cfg.Forms.HashKey,
		CSRFCookieName:   cfg.CSRF.CookieName,
		CSRFCookieSecure: cfg.CSRF.Secure,
		CSRFHeaderName:   cfg.CSRF.HeaderName,
		ReadTimeout:      cfg.Server.ReadTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		IdleTimeout:      cfg.Server.IdleTimeout,
	})
	if err != nil {
		logger.Fatal("init http server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	logger.Info("login server listening",
		zap.String("addr", cfg.Server.Address),
		zap.String("base_path", cfg.Server.BasePath),
		zap.String("user_endpoint", fetcher.Endpoint()),
	)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		cancel()
		stop()
		os.Exit(1)
	}
	logger.Info("login server stopped")
}
