package toolclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	agentClientOnce       sync.Once
	agentClient           *http.Client
	agentClientErr        error
	agentClientFactory    = buildAgentHTTPClient
	loadClientCertificate = tls.LoadX509KeyPair
)

// DefaultHTTPClient returns the process-wide HTTP client used for tool calls
// when no explicit client is injected. It is built once and reused so the
// underlying transport pools connections across calls.
func DefaultHTTPClient() (*http.Client, error) {
	agentClientOnce.Do(func() {
		agentClient, agentClientErr = agentClientFactory()
	})
	return agentClient, agentClientErr
}

func buildAgentHTTPClient() (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = 30 * time.Second

	if getBoolEnv("TOOLBRIDGE_TLS_ENABLED") {
		clientCertPath := strings.TrimSpace(os.Getenv("TOOLBRIDGE_CLIENT_CERT"))
		clientKeyPath := strings.TrimSpace(os.Getenv("TOOLBRIDGE_CLIENT_KEY"))
		if clientCertPath == "" || clientKeyPath == "" {
			return nil, fmt.Errorf("TOOLBRIDGE_TLS_ENABLED=true requires TOOLBRIDGE_CLIENT_CERT and TOOLBRIDGE_CLIENT_KEY to be set")
		}

		certificate, err := loadClientCertificate(clientCertPath, clientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load agent client certificate: %w", err)
		}

		tlsConfig := &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{certificate},
		}

		if caPath := strings.TrimSpace(os.Getenv("TOOLBRIDGE_CA_CERT")); caPath != "" {
			caData, err := readCACertificate(caPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read agent CA certificate: %w", err)
			}
			roots := x509.NewCertPool()
			if !roots.AppendCertsFromPEM(caData) {
				return nil, fmt.Errorf("failed to parse agent CA certificate")
			}
			tlsConfig.RootCAs = roots
		}

		if serverName := strings.TrimSpace(os.Getenv("TOOLBRIDGE_TLS_SERVER_NAME")); serverName != "" {
			tlsConfig.ServerName = serverName
		}

		transport.TLSClientConfig = tlsConfig
	}

	return &http.Client{Transport: newInstrumentedTransport(transport)}, nil
}

// SetAgentHTTPClientFactory swaps the client factory, primarily for tests
// that need to observe or fail client construction.
func SetAgentHTTPClientFactory(factory func() (*http.Client, error)) {
	agentClientFactory = factory
	resetAgentHTTPClient()
}

// ResetAgentHTTPClient restores the default factory and drops the cached
// client so the next call rebuilds it.
func ResetAgentHTTPClient() {
	agentClientFactory = buildAgentHTTPClient
	resetAgentHTTPClient()
}

func resetAgentHTTPClient() {
	agentClientOnce = sync.Once{}
	agentClient = nil
	agentClientErr = nil
}

func getBoolEnv(key string) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return false
	}
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

type instrumentedTransport struct {
	base *http.Transport
	rt   http.RoundTripper
}

func newInstrumentedTransport(base *http.Transport) http.RoundTripper {
	return &instrumentedTransport{
		base: base,
		rt:   otelhttp.NewTransport(base),
	}
}

func (i *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return i.rt.RoundTrip(req)
}

func (i *instrumentedTransport) Base() *http.Transport {
	return i.base
}

func readCACertificate(path string) ([]byte, error) {
	rootDir := strings.TrimSpace(os.Getenv("TOOLBRIDGE_CERT_FILE_ROOT"))
	return readFileFromAllowedRoot(path, rootDir)
}
