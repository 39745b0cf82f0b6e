package toolclient

import (
	"fmt"
	"time"
)

// TimeoutError reports that a single attempt did not complete within the
// configured per-attempt timeout. It is retryable until the attempt budget is
// exhausted.
type TimeoutError struct {
	Endpoint string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request to %s timed out after %s", e.Endpoint, e.Timeout)
}

// TransportError reports an underlying connection failure (DNS resolution,
// refused connection, reset, malformed response body). It is retryable until
// the attempt budget is exhausted.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteStatusError reports that the peer responded with a non-success HTTP
// status. The response body text is captured so the terminal error carries the
// peer's failure detail. All non-success statuses are retried identically,
// including client errors.
type RemoteStatusError struct {
	Endpoint   string
	StatusCode int
	Status     string
	Body       string
}

func (e *RemoteStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote agent returned %s", e.Status)
	}
	return fmt.Sprintf("remote agent returned %s: %s", e.Status, e.Body)
}

// RemoteCallError is the only error that crosses the client boundary on the
// remote path. It wraps the failure of the final attempt after the retry
// budget is exhausted.
type RemoteCallError struct {
	Tool     string
	Attempts int
	Err      error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("tool %q failed after %d attempt(s): %v", e.Tool, e.Attempts, e.Err)
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}
