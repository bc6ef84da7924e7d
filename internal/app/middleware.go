package app

import (
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/famledger/famledger/internal/observability"
	"github.com/famledger/famledger/internal/platform/httpx"
)

// BridgeTokenHeader carries the optional shared secret.
const BridgeTokenHeader = "X-Bridge-Token"

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
}

// MiddlewareStack installs the bridge middleware chain. The remote address
// is taken from the socket only; forwarding headers are ignored.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'",
		AllowedHosts:          allowedHosts(cfg.Config),
		IsDevelopment:         cfg.Config == nil || !cfg.Config.IsProduction(),
	})

	timeout := 30 * time.Second
	limit := 600
	token := ""
	if cfg.Config != nil {
		if cfg.Config.BridgeRequestTimeout > 0 {
			timeout = cfg.Config.BridgeRequestTimeout
		}
		if cfg.Config.BridgeRateLimit > 0 {
			limit = cfg.Config.BridgeRateLimit
		}
		token = cfg.Config.BridgeToken
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RequestID,
		LoopbackOnly(cfg.Logger),
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					httpx.Problem(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest), "host not allowed")
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		httprate.Limit(limit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
		RequireToken(token),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, cfg.Metrics.Middleware)
	}
	return middlewares
}

// LoopbackOnly rejects requests whose socket peer is not a loopback address.
func LoopbackOnly(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isLoopbackPeer(r.RemoteAddr) {
				if logger != nil {
					logger.Warn("rejected non-loopback peer", slog.String("remote", r.RemoteAddr))
				}
				httpx.Problem(w, http.StatusForbidden, http.StatusText(http.StatusForbidden), "bridge accepts loopback clients only")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireToken enforces the shared secret when token is non-empty. The
// health probe stays open.
func RequireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		want := []byte(token)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}
			got := []byte(r.Header.Get(BridgeTokenHeader))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				httpx.Problem(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized), "missing or invalid bridge token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isLoopbackPeer(remote string) bool {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func allowedHosts(cfg *Config) []string {
	if cfg == nil || !cfg.IsProduction() {
		return nil
	}
	_, port, err := net.SplitHostPort(cfg.BridgeAddr)
	if err != nil {
		return nil
	}
	return []string{"127.0.0.1:" + port, "localhost:" + port, "[::1]:" + port}
}
