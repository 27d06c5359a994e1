// Package vite proxies a mini app's dev server, so the page and the host
// server share one origin.
package vite

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
)

func NewProxy(devURL string, logger *slog.Logger) (http.Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	target, err := url.Parse(devURL)
	if err != nil {
		return nil, fmt.Errorf("vite: parse dev server url: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("vite: dev server url %q needs a scheme and host", devURL)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("mini app dev server unreachable", "target", target.String(), "path", r.URL.Path, "err", err)
		http.Error(w, "mini app dev server unreachable", http.StatusBadGateway)
	}
	return proxy, nil
}
