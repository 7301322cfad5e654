// Package voice forwards outbound call requests to the Bland API so the
// provider key never reaches clients.
package voice

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	DefaultEndpoint = "https://api.bland.ai/v1/calls"
	maxBodyBytes    = 1 << 20
)

type Proxy struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewProxy builds a proxy. An empty endpoint means the Bland default.
func NewProxy(apiKey, endpoint string) *Proxy {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Proxy{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// ServeHTTP relays the JSON body and returns the provider's status and body
// unchanged.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if p.apiKey == "" {
		slog.ErrorContext(r.Context(), "Voice proxy called without BLAND_API_KEY")
		writeError(w, http.StatusInternalServerError, "Voice calling is not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unable to read request body")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Unable to build provider request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		slog.ErrorContext(r.Context(), "Voice provider request failed", "error", err)
		writeError(w, http.StatusBadGateway, "Voice provider unavailable")
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		slog.WarnContext(r.Context(), "Failed to relay provider response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
