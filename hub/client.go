// Package hub talks to the hub's Z-Wave configuration REST resource.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"zwave-console/protocol"
)

const (
	// DefaultBaseURL is the hub's REST root
	DefaultBaseURL = "http://localhost:8080/rest"

	resourcePath = "/zwave"
	setPath      = "/zwave/set/"
	actionPath   = "/zwave/action/"
	eventsPath   = "/events"

	contentTypeJSON = "application/json"
)

// StatusError is returned when the hub answers with a non-2xx status
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// Client is a REST client for the hub
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given base URL.
// A zero timeout leaves the transport default in place.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid hub URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid hub URL %q: scheme must be http or https", baseURL)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// BaseURL returns the REST root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Load reads the records below domain. An empty domain reads the top level.
func (c *Client) Load(ctx context.Context, domain string) ([]protocol.ConfigNode, error) {
	target := c.baseURL + resourcePath
	if domain != "" {
		target += "/" + domain
	}

	resp, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body protocol.RecordsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("error decoding records from %s: %w", target, err)
	}
	return body.Records, nil
}

// SetValue writes a raw value to the node at domain
func (c *Client) SetValue(ctx context.Context, domain, value string) error {
	return c.put(ctx, c.baseURL+setPath+domain, value)
}

// InvokeAction sends an action key to the node at domain
func (c *Client) InvokeAction(ctx context.Context, domain, actionKey string) error {
	return c.put(ctx, c.baseURL+actionPath+domain, actionKey)
}

// EventsURL returns the event-stream URL for the given topic filter
func (c *Client) EventsURL(topics string) string {
	return c.baseURL + eventsPath + "?topics=" + url.QueryEscape(topics)
}

// HTTPClient exposes the underlying client so the event stream shares transport settings
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *Client) put(ctx context.Context, target, body string) error {
	resp, err := c.do(ctx, http.MethodPut, target, strings.NewReader(body))
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (c *Client) do(ctx context.Context, method, target string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", contentTypeJSON)
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	slog.Debug("hub request", "method", method, "url", target)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return nil, &StatusError{Method: method, URL: target, StatusCode: resp.StatusCode}
	}
	return resp, nil
}
