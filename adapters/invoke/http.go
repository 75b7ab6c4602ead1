package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/artpar/samgate/ports"
)

// invocationPath is the runtime-interface endpoint that local function
// containers expose for synchronous invocation.
const invocationPath = "/2015-03-31/functions/function/invocations"

// maxResultSize bounds how much of an invocation result is read.
const maxResultSize = 10 << 20 // 10MB

// HTTPInvokerConfig holds settings for a container-backed invoker.
type HTTPInvokerConfig struct {
	// BaseURL is the container's base URL, e.g. "http://localhost:9001".
	BaseURL string

	// Timeout is the per-invocation timeout. Default: 30 seconds.
	Timeout time.Duration

	// MaxIdleConns limits idle connections kept for reuse. Default: 100.
	MaxIdleConns int

	// IdleConnTimeout is how long idle connections stay open. Default: 90s.
	IdleConnTimeout time.Duration
}

// HTTPInvoker invokes a function running in a local runtime container.
// The proxy event is POSTed as JSON to the container's invocation endpoint
// and the response body is decoded as the invocation result.
type HTTPInvoker struct {
	client   *http.Client
	baseURL  *url.URL
	endpoint string
}

// NewHTTPInvoker creates an invoker for the container at cfg.BaseURL.
func NewHTTPInvoker(cfg HTTPInvokerConfig) (*HTTPInvoker, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("container base URL is required")
	}

	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid container URL %q: %w", cfg.BaseURL, err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("container URL %q must use http or https", cfg.BaseURL)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		IdleConnTimeout:     cfg.IdleConnTimeout,
	}

	return &HTTPInvoker{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		baseURL:  baseURL,
		endpoint: baseURL.JoinPath(invocationPath).String(),
	}, nil
}

// Invoke sends the event to the container and decodes the result.
func (inv *HTTPInvoker) Invoke(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inv.endpoint, bytes.NewReader(payload))
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("create invocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := inv.client.Do(req)
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("invoke container: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResultSize))
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("read invocation result: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("container returned status %d", resp.StatusCode)
	}

	var result events.APIGatewayProxyResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("decode invocation result: %w", err)
	}

	// Unhandled function errors come back as 200 with an error document
	// instead of a proxy response.
	if result.StatusCode == 0 {
		var fault struct {
			ErrorMessage string `json:"errorMessage"`
			ErrorType    string `json:"errorType"`
		}
		if json.Unmarshal(body, &fault) == nil && fault.ErrorMessage != "" {
			if fault.ErrorType != "" {
				return events.APIGatewayProxyResponse{}, fmt.Errorf("function error %s: %s", fault.ErrorType, fault.ErrorMessage)
			}
			return events.APIGatewayProxyResponse{}, fmt.Errorf("function error: %s", fault.ErrorMessage)
		}
	}

	return result, nil
}

// HealthCheck verifies the container is reachable. Any HTTP response counts
// as healthy; the runtime interface has no dedicated health endpoint.
func (inv *HTTPInvoker) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, inv.baseURL.String(), nil)
	if err != nil {
		return fmt.Errorf("create health check request: %w", err)
	}

	resp, err := inv.client.Do(req)
	if err != nil {
		return fmt.Errorf("container unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	return nil
}

// BaseURL returns the container base URL the invoker was built with.
func (inv *HTTPInvoker) BaseURL() string {
	return inv.baseURL.String()
}

// Close releases idle connections.
func (inv *HTTPInvoker) Close() {
	inv.client.CloseIdleConnections()
}

// Ensure interface compliance.
var (
	_ ports.Handler       = (*HTTPInvoker)(nil)
	_ ports.HealthChecker = (*HTTPInvoker)(nil)
)
