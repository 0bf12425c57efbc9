package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jiayi-1994/zstack-macpool/pkg/config"
	"github.com/jiayi-1994/zstack-macpool/pkg/logging"
	"github.com/jiayi-1994/zstack-macpool/pkg/types"
)

const (
	// ConnectTimeout is the timeout for connecting to the pool service
	ConnectTimeout = 5 * time.Second

	// ClientTimeout is the overall timeout of a single attempt
	ClientTimeout = 60 * time.Second
)

// Client is a client for communicating with the pool service
type Client struct {
	// socketPath is the path to the pool service Unix socket
	socketPath string

	// httpClient is the HTTP client for making requests
	httpClient *http.Client

	// maxRetries is the number of retries after a transport failure
	maxRetries int

	// initialInterval is the first retry delay
	initialInterval time.Duration
}

// NewClient creates a new pool service client
//
// Parameters:
//   - socketPath: Path to the pool service Unix socket
//   - cfg: Retry settings
//
// Returns:
//   - *Client: Client instance
func NewClient(socketPath string, cfg config.ClientConfig) *Client {
	if socketPath == "" {
		socketPath = types.DefaultSocketPath
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			dialer := net.Dialer{
				Timeout: ConnectTimeout,
			}
			return dialer.DialContext(ctx, "unix", socketPath)
		},
	}

	return &Client{
		socketPath: socketPath,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   ClientTimeout,
		},
		maxRetries:      cfg.MaxRetries,
		initialInterval: cfg.InitialInterval,
	}
}

// Generate enumerates up to limit unicast addresses of [start, end].
func (c *Client) Generate(ctx context.Context, start, end string, limit int) ([]string, error) {
	var resp GenerateResponse
	req := &GenerateRequest{Start: start, End: end, Limit: &limit}
	if err := c.do(ctx, http.MethodPost, types.PathGenerate, req, &resp); err != nil {
		return nil, err
	}
	return resp.MACs, nil
}

// Validate reports whether [start, end] contains a unicast address.
func (c *Client) Validate(ctx context.Context, start, end string) (*ValidateResponse, error) {
	var resp ValidateResponse
	if err := c.do(ctx, http.MethodPost, types.PathValidate, &ValidateRequest{Start: start, End: end}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Format renders a numeric address in canonical form.
func (c *Client) Format(ctx context.Context, value uint64) (string, error) {
	var resp FormatResponse
	if err := c.do(ctx, http.MethodPost, types.PathFormat, &FormatRequest{Value: value}, &resp); err != nil {
		return "", err
	}
	return resp.MAC, nil
}

// Allocate allocates mac from pool, or the next free address when mac is empty.
func (c *Client) Allocate(ctx context.Context, pool, mac string) (string, error) {
	var resp AllocateResponse
	if err := c.do(ctx, http.MethodPost, types.PathAllocate, &AllocateRequest{Pool: pool, MAC: mac}, &resp); err != nil {
		return "", err
	}
	return resp.MAC, nil
}

// Release returns mac to pool.
func (c *Client) Release(ctx context.Context, pool, mac string) error {
	return c.do(ctx, http.MethodPost, types.PathRelease, &ReleaseRequest{Pool: pool, MAC: mac}, nil)
}

// Health checks that the service is up.
func (c *Client) Health(ctx context.Context) error {
	var resp HealthResponse
	return c.do(ctx, http.MethodGet, types.PathHealth, nil, &resp)
}

// do sends a request, retrying transport failures with exponential backoff.
// Errors reported by the server are returned as *StatusError without retry.
func (c *Client) do(ctx context.Context, method, path string, req, resp interface{}) error {
	var reqBody []byte
	if req != nil {
		var err error
		reqBody, err = json.Marshal(req)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	operation := func() error {
		return c.send(ctx, method, path, reqBody, resp)
	}

	log := logging.LoggerForServer(path)
	notify := func(err error, next time.Duration) {
		log.Debug("Pool server request failed, retrying", "error", err.Error(), "backoff", next)
	}

	return backoff.RetryNotify(operation, c.newBackOff(ctx), notify)
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.initialInterval > 0 {
		b.InitialInterval = c.initialInterval
	}
	retries := c.maxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// send performs a single attempt.
func (c *Client) send(ctx context.Context, method, path string, reqBody []byte, resp interface{}) error {
	// Use "localhost" as host since we're using Unix socket
	url := fmt.Sprintf("http://localhost%s", path)

	var body io.Reader
	if reqBody != nil {
		body = bytes.NewReader(reqBody)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
	}
	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to pool server at %s: %w", c.socketPath, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err != nil || errResp.Error == "" {
			errResp.Error = http.StatusText(httpResp.StatusCode)
		}
		return backoff.Permanent(&StatusError{Code: httpResp.StatusCode, Message: errResp.Error})
	}

	if resp == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, resp); err != nil {
		return backoff.Permanent(fmt.Errorf("failed to unmarshal response: %w", err))
	}
	return nil
}
