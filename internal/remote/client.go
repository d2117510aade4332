// Package remote talks to the spreadsheet script endpoint that stores the
// readings. Every action is a GET with the action name and its fields in
// the query string, answered with a JSON envelope.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrNoScriptURL is returned when no endpoint URL has been configured.
var ErrNoScriptURL = errors.New("script URL not configured; run 'envlog config set-url <url>'")

// DefaultTimeout bounds a single request when no other timeout is set.
const DefaultTimeout = 30 * time.Second

// APIError is a well-formed response with success=false.
type APIError struct {
	Action  string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: endpoint reported failure", e.Action)
	}
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Action string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed: %d", e.Code)
}

// envelope is the response body shared by every action.
type envelope struct {
	Success         bool            `json:"success"`
	Message         string          `json:"message"`
	Data            json.RawMessage `json:"data"`
	RecordsRestored int             `json:"recordsRestored"`
}

func (e *envelope) hasData() bool {
	d := strings.TrimSpace(string(e.Data))
	return d != "" && d != "null"
}

// Client calls the endpoint. It is safe for concurrent use.
type Client struct {
	scriptURL  string
	httpClient *http.Client
	limiter    *rate.Limiter
	trace      io.Writer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client (its Timeout still applies).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit caps requests per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTrace writes one line per request to w.
func WithTrace(w io.Writer) Option {
	return func(c *Client) { c.trace = w }
}

// New returns a client for scriptURL.
func New(scriptURL string, opts ...Option) (*Client, error) {
	scriptURL = strings.TrimSpace(scriptURL)
	if scriptURL == "" {
		return nil, ErrNoScriptURL
	}
	if _, err := url.Parse(scriptURL); err != nil {
		return nil, fmt.Errorf("invalid script URL: %w", err)
	}
	c := &Client{
		scriptURL:  scriptURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL returns the endpoint the client calls.
func (c *Client) URL() string {
	return c.scriptURL
}

// call issues action with params and returns the decoded envelope.
// Redirects are followed; the script host answers through one.
func (c *Client) call(ctx context.Context, action string, params url.Values) (*envelope, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", action, err)
		}
	}

	u, err := url.Parse(c.scriptURL)
	if err != nil {
		return nil, fmt.Errorf("invalid script URL: %w", err)
	}
	q := u.Query()
	q.Set("action", action)
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.tracef("action=%s error=%q took=%s", action, err, time.Since(start).Round(time.Millisecond))
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	defer resp.Body.Close()
	c.tracef("action=%s status=%d took=%s", action, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Action: action, Code: resp.StatusCode}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%s: invalid response: %w", action, err)
	}
	if !env.Success {
		return nil, &APIError{Action: action, Message: env.Message}
	}
	return &env, nil
}

func (c *Client) tracef(format string, args ...any) {
	if c.trace == nil {
		return
	}
	fmt.Fprintf(c.trace, "[remote] "+format+"\n", args...)
}

// decodeData unmarshals the envelope's data into out.
func decodeData(action string, env *envelope, out any) error {
	if !env.hasData() {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s: invalid data: %w", action, err)
	}
	return nil
}

// ValidateScriptURL checks that s looks like a deployed script web app URL.
func ValidateScriptURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return ErrNoScriptURL
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("URL must use https")
	}
	if !strings.Contains(u.Host, "script.google.com") {
		return fmt.Errorf("URL must point to script.google.com")
	}
	if !strings.HasSuffix(u.Path, "/exec") {
		return fmt.Errorf("URL must end in /exec (use the web app deployment URL)")
	}
	return nil
}
