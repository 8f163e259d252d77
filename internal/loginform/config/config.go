package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile      = ".env"
	defaultAddress      = ":8080"
	defaultBasePath     = "/login"
	defaultUserEndpoint = "https://jsonplaceholder.typicode.com/users/1"
	defaultFetchTimeout = 10 * time.Second
	defaultPollWindow   = 20 * time.Second
	defaultPollDelay    = 250 * time.Millisecond
	defaultFormIdleTTL  = 30 * time.Minute
	defaultFormCapacity = 1024
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 60 * time.Second
	defaultCSRFCookie   = "login_csrf"
	defaultCSRFHeader   = "X-CSRF-Token"
	defaultLocale       = "en"
	defaultLogLevel     = "info"
	minHashKeyBytes     = 32
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server ServerConfig
	Users  UsersConfig
	Forms  FormsConfig
	CSRF   CSRFConfig
	Locale string
	Log    LogConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address      string
	BasePath     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// UsersConfig points at the user resource requested on submit.
type UsersConfig struct {
	Endpoint     string
	FetchTimeout time.Duration
}

// FormsConfig controls mounted form lifetime and polling.
type FormsConfig struct {
	IdleTTL    time.Duration
	Capacity   int
	PollWindow time.Duration
	PollDelay  time.Duration
	// HashKey signs form tokens. Empty means a random per-process key.
	HashKey []byte
}

// CSRFConfig controls the double-submit cookie.
type CSRFConfig struct {
	CookieName string
	HeaderName string
	Secure     bool
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level string
}

// ValidationError is returned when configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides. Empty disables it.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects explicit key/value pairs that take precedence over the system environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables os.LookupEnv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles configuration from defaults, .env overrides, environment variables
// and the explicit env map, in increasing precedence.
func Load(_ context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Address:      stringWithDefault(lookup, "LOGIN_HTTP_ADDR", defaultAddress),
			BasePath:     normalizeBasePath(stringWithDefault(lookup, "LOGIN_BASE_PATH", defaultBasePath)),
			ReadTimeout:  durationWithDefault(lookup, "LOGIN_HTTP_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "LOGIN_HTTP_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "LOGIN_HTTP_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Users: UsersConfig{
			Endpoint:     stringWithDefault(lookup, "LOGIN_USER_ENDPOINT", defaultUserEndpoint),
			FetchTimeout: durationWithDefault(lookup, "LOGIN_FETCH_TIMEOUT", defaultFetchTimeout),
		},
		Forms: FormsConfig{
			IdleTTL:    durationWithDefault(lookup, "LOGIN_FORM_IDLE_TTL", defaultFormIdleTTL),
			Capacity:   intWithDefault(lookup, "LOGIN_FORM_CAPACITY", defaultFormCapacity),
			PollWindow: durationWithDefault(lookup, "LOGIN_POLL_WINDOW", defaultPollWindow),
			PollDelay:  durationWithDefault(lookup, "LOGIN_POLL_DELAY", defaultPollDelay),
			HashKey:    []byte(stringWithDefault(lookup, "LOGIN_FORM_HASH_KEY", "")),
		},
		CSRF: CSRFConfig{
			CookieName: stringWithDefault(lookup, "LOGIN_CSRF_COOKIE", defaultCSRFCookie),
			HeaderName: stringWithDefault(lookup, "LOGIN_CSRF_HEADER", defaultCSRFHeader),
			Secure:     boolWithDefault(lookup, "LOGIN_CSRF_SECURE", false),
		},
		Locale: strings.ToLower(stringWithDefault(lookup, "LOGIN_DEFAULT_LOCALE", defaultLocale)),
		Log: LogConfig{
			Level: strings.ToLower(stringWithDefault(lookup, "LOG_LEVEL", defaultLogLevel)),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var invalid []string

	if strings.TrimSpace(cfg.Server.Address) == "" {
		invalid = append(invalid, "Server.Address")
	}
	endpoint, err := url.Parse(cfg.Users.Endpoint)
	if err != nil || (endpoint.Scheme != "http" && endpoint.Scheme != "https") || endpoint.Host == "" {
		invalid = append(invalid, "Users.Endpoint")
	}
	if cfg.Users.FetchTimeout <= 0 {
		invalid = append(invalid, "Users.FetchTimeout")
	}
	if cfg.Forms.IdleTTL <= 0 {
		invalid = append(invalid, "Forms.IdleTTL")
	}
	if cfg.Forms.Capacity <= 0 {
		invalid = append(invalid, "Forms.Capacity")
	}
	if cfg.Forms.PollWindow <= 0 {
		invalid = append(invalid, "Forms.PollWindow")
	}
	if cfg.Forms.PollDelay <= 0 {
		invalid = append(invalid, "Forms.PollDelay")
	}
	if n := len(cfg.Forms.HashKey); n > 0 && n < minHashKeyBytes {
		invalid = append(invalid, "Forms.HashKey")
	}
	if strings.TrimSpace(cfg.CSRF.CookieName) == "" {
		invalid = append(invalid, "CSRF.CookieName")
	}
	if strings.TrimSpace(cfg.CSRF.HeaderName) == "" {
		invalid = append(invalid, "CSRF.HeaderName")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

func normalizeBasePath(path string) string {
	p := strings.TrimSpace(path)
	if p == "" {
		return defaultBasePath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
