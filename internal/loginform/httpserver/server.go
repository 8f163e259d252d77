package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"finitefield.org/loginform/internal/loginform/form"
	custommw "finitefield.org/loginform/internal/loginform/httpserver/middleware"
	"finitefield.org/loginform/internal/loginform/i18n"
	"finitefield.org/loginform/public"
)

const assetBase = "/public/static"

// Config holds runtime options for the login HTTP server.
type Config struct {
	Address  string
	BasePath string

	Fetcher      form.Fetcher
	Logger       *zap.Logger
	Bundle       *i18n.Bundle
	Locale       string
	FetchTimeout time.Duration

	FormIdleTTL  time.Duration
	FormCapacity int
	PollWindow   time.Duration
	PollDelay    time.Duration
	HashKey      []byte

	CSRFCookieName   string
	CSRFCookieSecure bool
	CSRFHeaderName   string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// New constructs the HTTP server with middleware stack, embedded assets and form routes.
// Mounted forms are unmounted when the server shuts down.
func New(cfg Config) (*http.Server, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("httpserver: fetcher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	bundle := cfg.Bundle
	if bundle == nil {
		var err error
		bundle, err = i18n.Default(cfg.Locale)
		if err != nil {
			return nil, fmt.Errorf("httpserver: load locales: %w", err)
		}
	}

	tokens, err := newTokenCodec(cfg.HashKey)
	if err != nil {
		return nil, err
	}

	registry, err := form.NewRegistry(cfg.Fetcher, form.RegistryConfig{
		Capacity: cfg.FormCapacity,
		IdleTTL:  cfg.FormIdleTTL,
		Options: []form.Option{
			form.WithFetchTimeout(cfg.FetchTimeout),
			form.WithObserver(transitionLogger(logger)),
		},
		OnUnmount: func(id string) {
			logger.Debug("login form unmounted", zap.String("form_id", id))
		},
	})
	if err != nil {
		return nil, err
	}

	staticContent, err := public.StaticFS()
	if err != nil {
		return nil, fmt.Errorf("httpserver: embed static: %w", err)
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(custommw.InjectLogger(logger))
	router.Use(custommw.RequestLogger())
	router.Use(custommw.Recoverer())

	router.Handle(assetBase+"/*", http.StripPrefix(assetBase+"/", http.FileServer(http.FS(staticContent))))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	basePath := normalizeBasePath(cfg.BasePath)
	handlers := newFormHandlers(formHandlersConfig{
		Registry:   registry,
		Tokens:     tokens,
		Bundle:     bundle,
		BasePath:   basePath,
		CSRFHeader: firstNonEmpty(cfg.CSRFHeaderName, "X-CSRF-Token"),
		PollWindow: cfg.PollWindow,
		PollDelay:  cfg.PollDelay,
	})

	mountFormRoutes(router, basePath, handlers, custommw.CSRFConfig{
		CookieName: cfg.CSRFCookieName,
		CookiePath: basePath,
		HeaderName: cfg.CSRFHeaderName,
		Secure:     cfg.CSRFCookieSecure,
	})

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  durationOr(cfg.ReadTimeout, 10*time.Second),
		WriteTimeout: durationOr(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  durationOr(cfg.IdleTimeout, 60*time.Second),
	}
	srv.RegisterOnShutdown(registry.Close)
	return srv, nil
}

func mountFormRoutes(router chi.Router, base string, h *formHandlers, csrf custommw.CSRFConfig) {
	router.Group(func(r chi.Router) {
		r.Use(custommw.HTMX())
		r.Use(custommw.NoStore())
		r.Use(custommw.CSRF(csrf))

		r.Get(base, h.Mount)
		r.Route(joinPath(base, "forms/{token}"), func(r chi.Router) {
			r.Get("/", h.State)
			r.Delete("/", h.Unmount)
			r.With(custommw.RequireHTMX()).Post("/input", h.Input)
			r.Post("/submit", h.Submit)
		})
	})
}

func transitionLogger(logger *zap.Logger) form.Observer {
	settledSuccess := form.EventName(form.FetchSucceeded{})
	settledError := form.EventName(form.FetchFailed{})
	submitted := form.EventName(form.SubmitStarted{})

	return func(tr form.Transition) {
		switch tr.Event {
		case settledSuccess, settledError:
			outcome := "success"
			if tr.Event == settledError {
				outcome = "error"
			}
			logger.Info("login form settled",
				zap.String("form_id", tr.FormID),
				zap.String("outcome", outcome),
				zap.String("phase", string(tr.After.Phase())),
			)
		case submitted:
			logger.Debug("login form submitted", zap.String("form_id", tr.FormID))
		}
	}
}

func normalizeBasePath(path string) string {
	p := strings.TrimSpace(path)
	if p == "" {
		return "/login"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}

func joinPath(base, suffix string) string {
	if base == "/" {
		return "/" + suffix
	}
	return base + "/" + suffix
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
