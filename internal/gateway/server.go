package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"infergate/pkg/types"
)

const serviceName = "infergate"

// Store is the slice of the credential store the gateway needs: fast
// validation on every request plus on-demand reload for the admin path.
type Store interface {
	Validator
	Load(ctx context.Context) error
	Count() int
}

// Options configures the gateway mux.
type Options struct {
	// BackendURL is the internal base URL all authenticated traffic is
	// forwarded to.
	BackendURL string
	// Store validates credentials and serves reloads.
	Store Store
	// ProxyTimeout bounds how long the backend may take to start responding.
	ProxyTimeout time.Duration
	Log          zerolog.Logger

	// CORS is opt-in; when disabled no CORS middleware is added.
	CORSEnabled        bool
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
}

// NewMux builds the public gateway handler.
//
// Routes:
//
//	GET  /health            liveness, unauthenticated
//	GET  /metrics           Prometheus metrics
//	GET  /admin/reload-keys credential reload, authenticated
//	*    /*                 forwarded to the backend, authenticated
func NewMux(opts Options) (http.Handler, error) {
	target, err := url.Parse(opts.BackendURL)
	if err != nil {
		return nil, err
	}
	proxy := newProxy(target, opts.ProxyTimeout, opts.Log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if opts.CORSEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSAllowedOrigins,
			AllowedMethods: opts.CORSAllowedMethods,
			AllowedHeaders: opts.CORSAllowedHeaders,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.HealthResponse{
			Status:     "healthy",
			Service:    serviceName,
			KeysLoaded: opts.Store.Count(),
		})
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(RequireKey(opts.Store, opts.Log))

		r.Get("/admin/reload-keys", func(w http.ResponseWriter, r *http.Request) {
			if err := opts.Store.Load(r.Context()); err != nil {
				keyReloadsTotal.WithLabelValues("failure").Inc()
				opts.Log.Error().Err(err).Msg("credential reload failed")
				writeJSONError(w, http.StatusInternalServerError, "failed to reload keys: "+err.Error())
				return
			}
			keyReloadsTotal.WithLabelValues("success").Inc()
			opts.Log.Info().Int("keys", opts.Store.Count()).Msg("credentials reloaded")
			writeJSON(w, http.StatusOK, types.ReloadResponse{
				Status:     "success",
				KeysLoaded: opts.Store.Count(),
				Message:    "API keys reloaded from secret store",
			})
		})

		// Everything else goes to the backend as-is.
		r.Handle("/*", proxy)
	})

	return r, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
