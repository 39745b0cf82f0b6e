package cli

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/toolbridge/toolbridge/internal/toolclient"
)

const (
	defaultProbeTimeout = 3 * time.Second
	agentHealthPath     = "/healthz"
)

type probeResult struct {
	Status    string  `json:"status"`
	URL       string  `json:"url"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
	Error     *string `json:"error,omitempty"`
}

// probeAgent checks the remote agent's health endpoint and reports status
// with the observed latency. Any non-2xx response or transport failure is a
// "fail" with the error captured.
func probeAgent(ctx context.Context, baseURL string) probeResult {
	start := time.Now()
	target := strings.TrimRight(baseURL, "/") + agentHealthPath

	client, err := toolclient.DefaultHTTPClient()
	if err != nil {
		return failureProbe(start, target, fmt.Sprintf("agent client unavailable: %v", err))
	}

	probeCtx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, target, nil)
	if err != nil {
		return failureProbe(start, target, fmt.Sprintf("failed to create health request: %v", err))
	}

	resp, err := client.Do(req)
	if err != nil {
		return failureProbe(start, target, fmt.Sprintf("health request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return failureProbe(start, target, fmt.Sprintf("agent health returned %d", resp.StatusCode))
	}

	return probeResult{
		Status:    "pass",
		URL:       target,
		LatencyMs: float64(time.Since(start).Milliseconds()),
	}
}

func failureProbe(start time.Time, target, message string) probeResult {
	return probeResult{
		Status:    "fail",
		URL:       target,
		LatencyMs: float64(time.Since(start).Milliseconds()),
		Error:     ptr(message),
	}
}

func ptr[T any](value T) *T {
	return &value
}
