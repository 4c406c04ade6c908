package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	// StatusRateLimited is returned by the forge when requests must be slowed down
	StatusRateLimited = http.StatusUnprocessableEntity

	DefaultTimeout  = 60 * time.Second
	DefaultBackoff  = 60 * time.Second
	DefaultPageSize = 100
)

var (
	ErrAlreadyExists = errors.New("repository already exists")
	ErrRateLimited   = errors.New("rate limited")
)

// StatusError is returned when forge responded with unexpected status
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected response status %d, body:%q", e.Op, e.StatusCode, e.Body)
}

// RetryPolicy defines how rate limited requests are retried
type RetryPolicy struct {
	// Backoff is the time to wait before retrying rate limited request
	Backoff time.Duration
	// MaxAttempts is the total number of attempts allowed for single request,
	// 0 means request is retried until it is not rate limited
	MaxAttempts int
}

// Config is the configuration of the forge client
type Config struct {
	// URL is the base URL of the forge e.g. https://git.yunohost.org
	URL string
	// Token is the forge access token
	Token string
	// OwnerID is the id of the owner whose mirrors are listed first
	OwnerID int
	// PageSize is the number of repositories requested per search page
	PageSize int
	// Timeout is the default timeout of a single request
	Timeout time.Duration
	// Retry is the policy applied to rate limited requests
	Retry RetryPolicy
}

// Client is a forge API client.
type Client struct {
	baseURL    *url.URL
	token      string
	ownerID    int
	pageSize   int
	timeout    time.Duration
	retry      RetryPolicy
	httpClient *http.Client
	log        *slog.Logger
}

// RequestOptions are the optional parts of a request
type RequestOptions struct {
	// Query is added to the request URL
	Query url.Values
	// Body is encoded as JSON
	Body any
	// Timeout overrides client default timeout for each attempt
	Timeout time.Duration
}

// Response is the status and the body of a completed request
type Response struct {
	StatusCode int
	Body       []byte
}

// New creates forge client from the given config.
// if httpClient is nil http.DefaultClient is used.
func New(conf Config, httpClient *http.Client, log *slog.Logger) (*Client, error) {
	baseURL, err := url.Parse(conf.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid forge url err:%w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("forge url '%s' must be absolute", conf.URL)
	}

	if conf.Timeout == 0 {
		conf.Timeout = DefaultTimeout
	}
	if conf.PageSize == 0 {
		conf.PageSize = DefaultPageSize
	}
	if conf.Retry.MaxAttempts < 0 {
		return nil, fmt.Errorf("max attempts cannot be negative")
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		token:      conf.Token,
		ownerID:    conf.OwnerID,
		pageSize:   conf.PageSize,
		timeout:    conf.Timeout,
		retry:      conf.Retry,
		httpClient: httpClient,
		log:        log.With("forge", baseURL.Host),
	}, nil
}

// Perform sends request to the forge and returns the response whatever its status is.
// If forge responds with StatusRateLimited, it waits for backoff time and sends
// same request again. error is only returned if request could not be completed
// or retry policy is exhausted.
func (c *Client) Perform(ctx context.Context, method, path string, opts RequestOptions) (*Response, error) {
	var body []byte
	if opts.Body != nil {
		var err error
		if body, err = json.Marshal(opts.Body); err != nil {
			return nil, fmt.Errorf("unable to encode request body err:%w", err)
		}
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = c.timeout
	}

	for attempt := 1; ; attempt++ {
		resp, err := c.do(ctx, method, path, opts.Query, body, timeout)
		if err != nil {
			return nil, err
		}
		recordRequest(method, resp.StatusCode)

		if resp.StatusCode != StatusRateLimited {
			return resp, nil
		}

		if c.retry.MaxAttempts > 0 && attempt >= c.retry.MaxAttempts {
			return nil, fmt.Errorf("%s %s: %w, gave up after %d attempts", method, path, ErrRateLimited, attempt)
		}

		c.log.Warn("rate limited, waiting before continuing", "method", method, "path", path, "backoff", c.retry.Backoff, "attempt", attempt)
		recordRateLimitWait()

		if err := sleep(ctx, c.retry.Backoff); err != nil {
			return nil, err
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, timeout time.Duration) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u := c.baseURL.JoinPath(path)
	q := u.Query()
	for k, v := range query {
		q[k] = v
	}
	if c.token != "" {
		q.Set("access_token", c.token)
	}
	u.RawQuery = q.Encode()

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	c.log.Log(ctx, -8, "sending request", "method", method, "path", u.Path)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: request failed err:%w", method, u.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: unable to read response body err:%w", method, u.Path, err)
	}

	c.log.Log(ctx, -8, "request completed", "method", method, "path", u.Path, "status", resp.StatusCode, "time", time.Since(start))

	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// sleep waits for given duration or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
