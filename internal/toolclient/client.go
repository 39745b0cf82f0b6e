// Package toolclient invokes named tools on a remote agent over HTTP with a
// bounded retry budget, or substitutes an in-process mock responder when no
// remote endpoint is configured.
package toolclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/toolbridge/toolbridge/internal/audit"
)

const (
	auditEventToolCall   = "tool.call"
	auditTargetAgent     = "agent.http"
	auditTargetMock      = "agent.mock"
	auditCapabilityTools = "tool.invoke"

	auditOutcomeSuccess = "success"
	auditOutcomeFailure = "failure"

	// backoffStep grows linearly with the attempt number: 200ms after the
	// first failed attempt, 400ms after the second, and so on. No jitter, no
	// cap beyond the retry limit itself.
	backoffStep = 200 * time.Millisecond

	// maxErrorBodyBytes bounds how much of a failure response body is
	// captured into the error detail.
	maxErrorBodyBytes = 4096
)

var clientTracer = otel.Tracer("toolbridge.toolclient")

// callEnvelope is the outbound wire format: POST {"tool": ..., "args": ...}.
type callEnvelope struct {
	Tool string `json:"tool"`
	Args any    `json:"args"`
}

// Client calls named tools on a remote agent. It is stateless between calls
// and safe for concurrent use; the configuration is read-only for the
// client's lifetime.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	auditLogger *audit.Logger

	// sleep waits out the inter-retry backoff. Swapped in tests so retry
	// schedules can be asserted without real waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option customises a Client at construction time.
type Option func(*Client)

// WithHTTPClient injects the HTTP client used for remote attempts. When not
// provided the shared instrumented client from DefaultHTTPClient is used.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAuditLogger injects the audit logger receiving per-call events.
func WithAuditLogger(logger *audit.Logger) Option {
	return func(c *Client) {
		c.auditLogger = logger
	}
}

// New constructs a Client from the provided configuration. A zero Timeout is
// replaced with DefaultTimeout before validation; a negative retry budget is
// rejected.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := &Client{
		cfg:   cfg,
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		httpClient, err := DefaultHTTPClient()
		if err != nil {
			return nil, err
		}
		client.httpClient = httpClient
	}
	if client.auditLogger == nil {
		client.auditLogger = audit.Default()
	}
	return client, nil
}

// Config returns a copy of the client's configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// CallOption customises a single invocation.
type CallOption func(*callOptions)

type callOptions struct {
	endpoint string
}

// WithEndpoint overrides the target URL for this call only. It takes
// precedence over the configured base URL and never outlives the call.
func WithEndpoint(endpoint string) CallOption {
	return func(o *callOptions) {
		o.endpoint = strings.TrimSpace(endpoint)
	}
}

// CallTool invokes the named tool with the given argument payload and returns
// the JSON-decoded result. When neither a per-call endpoint nor a base URL is
// configured the call is served by the mock responder and always succeeds
// locally, with no network attempted. On the remote path up to MaxRetries+1
// attempts are made; only the terminal failure crosses this boundary, as a
// *RemoteCallError wrapping the last attempt's error.
func (c *Client) CallTool(ctx context.Context, tool string, args any, opts ...CallOption) (any, error) {
	var callOpts callOptions
	for _, opt := range opts {
		opt(&callOpts)
	}
	if args == nil {
		args = map[string]any{}
	}

	ctx, invocationID := audit.EnsureInvocationID(ctx)
	ctx, span := clientTracer.Start(ctx, "toolclient.call",
		trace.WithAttributes(attribute.String("tool.name", tool)))
	defer span.End()

	endpoint := callOpts.endpoint
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.cfg.BaseURL)
	}
	if endpoint == "" {
		result := mockRespond(tool, args)
		callsTotal.WithLabelValues(tool, outcomeMock).Inc()
		c.auditLogger.Info(ctx, audit.Event{
			Name:       auditEventToolCall,
			Outcome:    auditOutcomeSuccess,
			Target:     auditTargetMock,
			Capability: auditCapabilityTools,
			Details:    audit.SanitizeDetails(map[string]any{"tool": tool, "mocked": true}),
		})
		return result, nil
	}

	payload, err := json.Marshal(callEnvelope{Tool: tool, Args: args})
	if err != nil {
		return nil, &RemoteCallError{Tool: tool, Attempts: 0, Err: err}
	}

	start := time.Now()
	maxAttempts := c.cfg.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, attemptErr := c.attempt(ctx, endpoint, invocationID, payload)
		if attemptErr == nil {
			callsTotal.WithLabelValues(tool, outcomeSuccess).Inc()
			callDuration.WithLabelValues(tool).Observe(time.Since(start).Seconds())
			c.auditLogger.Info(ctx, audit.Event{
				Name:       auditEventToolCall,
				Outcome:    auditOutcomeSuccess,
				Target:     auditTargetAgent,
				Capability: auditCapabilityTools,
				Details:    audit.SanitizeDetails(map[string]any{"tool": tool, "attempts": attempt}),
			})
			return result, nil
		}
		lastErr = attemptErr

		if attempt == maxAttempts {
			break
		}
		backoff := backoffStep * time.Duration(attempt)
		slog.DebugContext(ctx, "toolclient.retry",
			slog.String("tool", tool),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.String("error", attemptErr.Error()),
		)
		retriesTotal.WithLabelValues(tool).Inc()
		if sleepErr := c.sleep(ctx, backoff); sleepErr != nil {
			callsTotal.WithLabelValues(tool, outcomeFailure).Inc()
			return nil, sleepErr
		}
	}

	callsTotal.WithLabelValues(tool, outcomeFailure).Inc()
	callDuration.WithLabelValues(tool).Observe(time.Since(start).Seconds())
	callErr := &RemoteCallError{Tool: tool, Attempts: maxAttempts, Err: lastErr}
	c.auditLogger.Error(ctx, audit.Event{
		Name:       auditEventToolCall,
		Outcome:    auditOutcomeFailure,
		Target:     auditTargetAgent,
		Capability: auditCapabilityTools,
		Details:    audit.SanitizeDetails(map[string]any{"tool": tool, "attempts": maxAttempts, "error": lastErr}),
	})
	return nil, callErr
}

// attempt performs a single HTTP round trip bounded by the per-attempt
// timeout. A timeout cancels only this attempt's in-flight request; the
// overall call proceeds to the next retry.
func (c *Client) attempt(ctx context.Context, endpoint, invocationID string, payload []byte) (any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if invocationID != "" {
		req.Header.Set("X-Request-Id", invocationID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimeoutError{Endpoint: endpoint, Timeout: c.cfg.Timeout}
		}
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &RemoteStatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var result any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	return result, nil
}

// sleepContext waits for the duration or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
