package composer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"studio/internal/domain"
)

// Host is the backend base URL.
type Host url.URL

// DefaultHost is the backend the pages were served from.
var DefaultHost = (*Host)(&url.URL{Scheme: "http", Host: "127.0.0.1:8000"})

// ParseHost parses a base URL such as http://127.0.0.1:8000.
func ParseHost(s string) (*Host, error) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("parse host: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("parse host: %q is not an absolute URL", s)
	}
	return (*Host)(u), nil
}

func (h *Host) String() string {
	return (*url.URL)(h).String()
}

// Join appends an already-escaped path and query to the host.
func (h *Host) Join(ref string) string {
	return strings.TrimRight(h.String(), "/") + ref
}

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP error! status: %d", e.Status)
	}
	return fmt.Sprintf("HTTP error! status: %d, details: %s", e.Status, e.Body)
}

// Backend is the set of calls the composer makes.
type Backend interface {
	PostTypes(ctx context.Context) ([]string, error)
	TrendsByCategory(ctx context.Context, category string) (*domain.NewsResponse, error)
	TrendsByTopic(ctx context.Context, topic string) (*domain.NewsResponse, error)
	RefreshTrends(ctx context.Context, category string) error
	FormSchema(ctx context.Context, postType string) (*domain.FormSchema, error)
	GeneratePrompt(ctx context.Context, payload map[string]string) (*domain.GeneratePromptResponse, error)
	GenerateImage(ctx context.Context, workflow json.RawMessage) ([]byte, string, error)
}

// Client talks to the generation backend over HTTP. No timeouts are set by
// default; callers bound requests through the context.
type Client struct {
	host *Host
	http *http.Client
}

func NewClient(host *Host, httpClient *http.Client) *Client {
	if host == nil {
		host = DefaultHost
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{host: host, http: httpClient}
}

func (c *Client) Host() *Host { return c.host }

func (c *Client) PostTypes(ctx context.Context) ([]string, error) {
	var out domain.PostTypesResponse
	if err := c.getJSON(ctx, "/post-types", &out); err != nil {
		return nil, err
	}
	return out.PostTypes, nil
}

func (c *Client) TrendsByCategory(ctx context.Context, category string) (*domain.NewsResponse, error) {
	var out domain.NewsResponse
	q := url.Values{"category": {category}}
	if err := c.getJSON(ctx, "/trends?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TrendsByTopic(ctx context.Context, topic string) (*domain.NewsResponse, error) {
	var out domain.NewsResponse
	if err := c.getJSON(ctx, "/fetch_trends/"+url.PathEscape(topic), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RefreshTrends(ctx context.Context, category string) error {
	q := url.Values{"category": {category}}
	_, _, err := c.do(ctx, http.MethodGet, "/update_trends?"+q.Encode(), nil)
	return err
}

func (c *Client) FormSchema(ctx context.Context, postType string) (*domain.FormSchema, error) {
	var out domain.FormSchema
	q := url.Values{"post_type": {postType}}
	if err := c.getJSON(ctx, "/generate_prompt_form?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GeneratePrompt(ctx context.Context, payload map[string]string) (*domain.GeneratePromptResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	data, _, err := c.do(ctx, http.MethodPost, "/generate_prompt", body)
	if err != nil {
		return nil, err
	}
	var out domain.GeneratePromptResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode generate_prompt response: %w", err)
	}
	return &out, nil
}

// GenerateImage posts the workflow and returns the raw image bytes and their MIME type.
func (c *Client) GenerateImage(ctx context.Context, workflow json.RawMessage) ([]byte, string, error) {
	body, err := json.Marshal(domain.GenerateImageRequest{WorkflowData: workflow})
	if err != nil {
		return nil, "", err
	}
	return c.do(ctx, http.MethodPost, "/generate_image", body)
}

func (c *Client) getJSON(ctx context.Context, ref string, out any) error {
	data, _, err := c.do(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", ref, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, ref string, body []byte) ([]byte, string, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.host.Join(ref), reader)
	if err != nil {
		return nil, "", err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, resp.Header.Get("Content-Type"), nil
}

var _ Backend = (*Client)(nil)
