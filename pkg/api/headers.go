package api

import (
	"crypto/tls"
	"net/http"
	"time"

	"clipvault/pkg/config"
)

// Headers returns the request header set shared by item, probe and download
// requests. Empty settings are left out.
func Headers(cfg config.APIConfig) http.Header {
	h := make(http.Header)
	h.Set("Accept", "*/*")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Content-Type", "application/json")

	if cfg.UserAgent != "" {
		h.Set("User-Agent", cfg.UserAgent)
	}
	if token := cfg.BearerToken(); token != "" {
		h.Set("Authorization", token)
	}
	if cfg.DeviceID != "" {
		name := cfg.DeviceHeader
		if name == "" {
			name = "oai-device-id"
		}
		h.Set(name, cfg.DeviceID)
	}
	if cfg.Cookie != "" {
		h.Set("Cookie", cfg.Cookie)
	}
	return h
}

// NewHTTPClient returns a client with the given overall timeout (0 for none).
// skipCertCheck disables TLS verification for hosts with self-signed certificates.
func NewHTTPClient(timeout time.Duration, skipCertCheck bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if skipCertCheck {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in flag
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
