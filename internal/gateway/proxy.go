package gateway

import (
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// newProxy builds the reverse proxy that forwards authenticated traffic to
// the backend verbatim: method, path, headers (minus the credential header)
// and body pass through unchanged, and the response streams back as-is.
func newProxy(target *url.URL, timeout time.Duration, log zerolog.Logger) *httputil.ReverseProxy {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &httputil.ReverseProxy{
		Transport: transport,
		// Negative FlushInterval streams token-by-token responses through
		// without buffering.
		FlushInterval: -1,
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Host = target.Host
			pr.Out.Header.Del(APIKeyHeader)
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			proxyErrorsTotal.Inc()
			log.Error().Err(err).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("backend unreachable")
			writeJSONError(w, http.StatusServiceUnavailable, "backend unavailable: "+err.Error())
		},
	}
}
