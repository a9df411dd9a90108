package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultURL is the endpoint probed after startup.
	DefaultURL = "http://localhost:22346/orders/2393483"
	// DefaultMethod is the probe's HTTP method.
	DefaultMethod = http.MethodPost
	// DefaultBody is the probe's JSON body: an empty object.
	DefaultBody = "{}"
	// DefaultRequestTimeout bounds a single probe.
	DefaultRequestTimeout = 30 * time.Second
)

// Request is the single request a session sends.
type Request struct {
	Method  string
	URL     string
	Body    []byte
	Headers map[string]string
}

// DefaultRequest returns POST {} to the order endpoint.
func DefaultRequest() Request {
	return Request{
		Method: DefaultMethod,
		URL:    DefaultURL,
		Body:   []byte(DefaultBody),
	}
}

// Response is what came back from the server.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// JSON parses the body as a string-to-string object.
func (r *Response) JSON() (map[string]string, error) {
	return ParseBody(r.Body)
}

// Client sends JSON requests synchronously.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a client with the given timeout (0 = DefaultRequestTimeout).
func NewClient(timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Do sends req and reads the full response. Any status code is returned as
// a Response; only transport failures produce an error. Nothing is retried.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = DefaultMethod
	}
	if req.URL == "" {
		return nil, fmt.Errorf("request URL cannot be empty")
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
		Duration:   time.Since(start),
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
