package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

var proxiedHeaders = []string{"Content-Type", "Content-Length", "Content-Range", "Accept-Ranges", "Last-Modified", "ETag"}

// handleProxyVideo streams a generated video through this origin so the SPA
// can play and download it without cross-origin restrictions. Only hosts in
// PROXY_ALLOWED_HOSTS are fetched.
func (s *Server) handleProxyVideo(w http.ResponseWriter, r *http.Request) {
	target, err := url.Parse(strings.TrimSpace(r.URL.Query().Get("url")))
	if err != nil || (target.Scheme != "https" && target.Scheme != "http") || target.Host == "" {
		writeMessage(w, http.StatusBadRequest, "url must be an absolute http(s) url")
		return
	}
	if !hostAllowed(target.Hostname(), s.Config.ProxyAllowedHosts) {
		writeMessage(w, http.StatusForbidden, "host is not allowed")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid url")
		return
	}
	if rng := r.Header.Get("Range"); rng != "" {
		req.Header.Set("Range", rng)
	}

	resp, err := s.ProxyClient.Do(req)
	if err != nil {
		s.Log.Warn("proxy video fetch failed", "err", err, "host", target.Host)
		writeMessage(w, http.StatusBadGateway, "could not fetch video")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		writeMessage(w, http.StatusBadGateway, "upstream returned "+resp.Status)
		return
	}

	for _, h := range proxiedHeaders {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if r.URL.Query().Get("download") == "1" {
		w.Header().Set("Content-Disposition", `attachment; filename="pet-dance.mp4"`)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.Log.Debug("proxy video copy interrupted", "err", err)
	}
}

const maxProxyRedirects = 5

var errRedirectNotAllowed = errors.New("redirect target is not allowed")

// proxyRedirectPolicy follows redirects only while they stay on allowed hosts.
func proxyRedirectPolicy(allowed []string) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxProxyRedirects {
			return fmt.Errorf("stopped after %d redirects", maxProxyRedirects)
		}
		if !hostAllowed(req.URL.Hostname(), allowed) {
			return fmt.Errorf("%w: %s", errRedirectNotAllowed, req.URL.Host)
		}
		return nil
	}
}

func hostAllowed(host string, allowed []string) bool {
	host = strings.ToLower(host)
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if host == a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}
