package toolclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingRoundTripper fails the test when any network request is attempted.
type failingRoundTripper struct {
	t *testing.T
}

func (rt failingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.t.Fatalf("unexpected network request to %s", req.URL)
	return nil, nil
}

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	client, err := New(cfg, WithHTTPClient(&http.Client{}))
	if err != nil {
		t.Fatalf("unexpected error building client: %v", err)
	}
	return client
}

// recordSleeps replaces the backoff sleep with a recorder so retry schedules
// can be asserted without waiting.
func recordSleeps(client *Client) *[]time.Duration {
	var sleeps []time.Duration
	client.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return &sleeps
}

func TestCallToolMockModePerformsNoNetworkIO(t *testing.T) {
	client, err := New(DefaultConfig(), WithHTTPClient(&http.Client{Transport: failingRoundTripper{t: t}}))
	require.NoError(t, err)

	for _, tool := range []string{"echo", "list_tools", "health", "anything_else"} {
		if _, err := client.CallTool(context.Background(), tool, nil); err != nil {
			t.Fatalf("mock call for %q returned error: %v", tool, err)
		}
	}
}

func TestCallToolMockEcho(t *testing.T) {
	client := newTestClient(t, DefaultConfig())

	result, err := client.CallTool(context.Background(), "echo", map[string]any{"hello": "world"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"echoed": map[string]any{"hello": "world"}}, result)
}

func TestCallToolMockEchoDefaultsArgsToEmptyMap(t *testing.T) {
	client := newTestClient(t, DefaultConfig())

	result, err := client.CallTool(context.Background(), "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"echoed": map[string]any{}}, result)
}

func TestCallToolMockListTools(t *testing.T) {
	client := newTestClient(t, DefaultConfig())

	result, err := client.CallTool(context.Background(), "list_tools", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"tools": []any{"echo", "health", "list_tools"}}, result)
}

func TestCallToolMockUnknownToolIsNotAnError(t *testing.T) {
	client := newTestClient(t, DefaultConfig())

	result, err := client.CallTool(context.Background(), "unknown_tool", nil)
	require.NoError(t, err)

	payload, ok := result.(map[string]any)
	require.True(t, ok, "expected map result, got %T", result)
	assert.Contains(t, payload["message"], "No remote agent configured and no mock found for tool: unknown_tool")
}

func TestCallToolSendsEnvelopeAndDecodesResult(t *testing.T) {
	var gotContentType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"answer": 42}`))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL, Timeout: time.Second, MaxRetries: 0})

	result, err := client.CallTool(context.Background(), "compute", map[string]any{"x": 7})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"answer": float64(42)}, result)

	assert.Equal(t, "application/json", gotContentType)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &envelope))
	assert.Equal(t, "compute", envelope["tool"])
	assert.Equal(t, map[string]any{"x": float64(7)}, envelope["args"])
}

func TestCallToolNilArgsMarshalsAsEmptyObject(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL, Timeout: time.Second})

	_, err := client.CallTool(context.Background(), "echo", nil)
	require.NoError(t, err)

	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(gotBody, &envelope))
	assert.JSONEq(t, `{}`, string(envelope["args"]))
}

func TestCallToolRetriesUntilBudgetExhausted(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL, Timeout: time.Second, MaxRetries: 3})
	sleeps := recordSleeps(client)

	_, err := client.CallTool(context.Background(), "compute", nil)
	require.Error(t, err)

	assert.Equal(t, int32(4), attempts.Load(), "expected maxRetries+1 attempts")
	assert.Equal(t, []time.Duration{
		200 * time.Millisecond,
		400 * time.Millisecond,
		600 * time.Millisecond,
	}, *sleeps)

	var callErr *RemoteCallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "compute", callErr.Tool)
	assert.Equal(t, 4, callErr.Attempts)

	var statusErr *RemoteStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "backend exploded")
}

func TestCallToolStopsRetryingOnSuccess(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			http.Error(w, "not yet", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL, Timeout: time.Second, MaxRetries: 5})
	sleeps := recordSleeps(client)

	result, err := client.CallTool(context.Background(), "flaky", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, result)

	assert.Equal(t, int32(3), attempts.Load(), "expected no attempts after the first success")
	assert.Len(t, *sleeps, 2)
}

func TestCallToolClientErrorsAreRetriedLikeServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL, Timeout: time.Second, MaxRetries: 2})
	recordSleeps(client)

	_, err := client.CallTool(context.Background(), "compute", nil)
	require.Error(t, err)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestCallToolTimeoutIsRetryable(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		// Drain the body so the server arms its background read; otherwise a
		// client disconnect is never detected and this context never cancels,
		// deadlocking server.Close.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond, MaxRetries: 1})
	recordSleeps(client)

	_, err := client.CallTool(context.Background(), "slow", nil)
	require.Error(t, err)
	assert.Equal(t, int32(2), attempts.Load())

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 50*time.Millisecond, timeoutErr.Timeout)
}

func TestCallToolTransportErrorIsWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	client := newTestClient(t, Config{BaseURL: endpoint, Timeout: time.Second, MaxRetries: 0})

	_, err := client.CallTool(context.Background(), "compute", nil)
	require.Error(t, err)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestCallToolEndpointOverrideDoesNotStick(t *testing.T) {
	var baseHits, overrideHits atomic.Int32
	base := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		baseHits.Add(1)
		w.Write([]byte(`{"from": "base"}`))
	}))
	defer base.Close()
	override := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		overrideHits.Add(1)
		w.Write([]byte(`{"from": "override"}`))
	}))
	defer override.Close()

	client := newTestClient(t, Config{BaseURL: base.URL, Timeout: time.Second})

	result, err := client.CallTool(context.Background(), "ping", nil, WithEndpoint(override.URL))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"from": "override"}, result)

	result, err = client.CallTool(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"from": "base"}, result)

	assert.Equal(t, int32(1), overrideHits.Load())
	assert.Equal(t, int32(1), baseHits.Load())
}

func TestCallToolEndpointOverrideEnablesRemotePathWithoutBaseURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"remote": true}`))
	}))
	defer server.Close()

	client := newTestClient(t, DefaultConfig())

	result, err := client.CallTool(context.Background(), "echo", nil, WithEndpoint(server.URL))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"remote": true}, result)
}

func TestCallToolHonorsContextCancellationDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL, Timeout: time.Second, MaxRetries: 5})

	ctx, cancel := context.WithCancel(context.Background())
	client.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := client.CallTool(ctx, "compute", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCallToolMalformedJSONSuccessIsRetryable(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL, Timeout: time.Second, MaxRetries: 1})
	recordSleeps(client)

	_, err := client.CallTool(context.Background(), "compute", nil)
	require.Error(t, err)
	assert.Equal(t, int32(2), attempts.Load())

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}
