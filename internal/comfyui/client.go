// Package comfyui is a client for the ComfyUI HTTP API: queueing
// workflows, polling history, fetching outputs and uploading inputs.
package comfyui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"studio/internal/domain"
	"studio/internal/infra"
)

var (
	ErrNoPromptID = errors.New("comfyui: response has no prompt_id")
	ErrNotReady   = errors.New("comfyui: prompt did not complete in time")
	ErrNoOutput   = errors.New("comfyui: prompt produced no images")
	ErrFailed     = errors.New("comfyui: prompt execution failed")
)

// StatusError is a non-2xx answer from ComfyUI.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("comfyui: %s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("comfyui: %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     infra.Logger

	// PollInterval is the first wait between history polls; it doubles up
	// to MaxPollInterval. MaxPolls bounds the number of polls.
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	MaxPolls        int

	// Breaker trips after BreakerMinRequests calls when the failure ratio
	// reaches BreakerFailureRatio, and stays open for BreakerTimeout.
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerTimeout      time.Duration
}

type Client struct {
	baseURL  string
	http     *http.Client
	logger   infra.Logger
	breaker  *gobreaker.CircuitBreaker
	clientID string

	pollInterval    time.Duration
	maxPollInterval time.Duration
	maxPolls        int
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8188"
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	c := &Client{
		baseURL:         baseURL,
		http:            httpClient,
		logger:          opts.Logger,
		clientID:        uuid.NewString(),
		pollInterval:    opts.PollInterval,
		maxPollInterval: opts.MaxPollInterval,
		maxPolls:        opts.MaxPolls,
	}
	if c.pollInterval <= 0 {
		c.pollInterval = 500 * time.Millisecond
	}
	if c.maxPollInterval < c.pollInterval {
		c.maxPollInterval = 5 * time.Second
		if c.maxPollInterval < c.pollInterval {
			c.maxPollInterval = c.pollInterval
		}
	}
	if c.maxPolls <= 0 {
		c.maxPolls = 120
	}
	minRequests := opts.BreakerMinRequests
	if minRequests == 0 {
		minRequests = 5
	}
	ratio := opts.BreakerFailureRatio
	if ratio <= 0 {
		ratio = 0.8
	}
	timeout := opts.BreakerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "comfyui",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
		// 4xx answers mean ComfyUI is up and rejected the input.
		IsSuccessful: func(err error) bool {
			var serr *StatusError
			if errors.As(err, &serr) {
				return serr.Status < 500
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return c
}

func (c *Client) BaseURL() string  { return c.baseURL }
func (c *Client) ClientID() string { return c.clientID }

// State is the breaker state, for health reporting.
func (c *Client) State() string { return c.breaker.State().String() }

type queueRequest struct {
	Prompt   json.RawMessage `json:"prompt"`
	ClientID string          `json:"client_id"`
}

type queueResponse struct {
	PromptID   string          `json:"prompt_id"`
	Number     int             `json:"number"`
	NodeErrors json.RawMessage `json:"node_errors"`
}

// QueuePrompt submits a graph and returns its prompt id.
func (c *Client) QueuePrompt(ctx context.Context, workflow json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(workflow)) == 0 {
		return "", errors.New("comfyui: workflow is empty")
	}
	body, err := json.Marshal(queueRequest{Prompt: workflow, ClientID: c.clientID})
	if err != nil {
		return "", fmt.Errorf("comfyui: encode prompt: %w", err)
	}
	raw, _, err := c.do(ctx, http.MethodPost, "/prompt", "application/json", body)
	if err != nil {
		return "", err
	}
	var out queueResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("comfyui: decode prompt response: %w", err)
	}
	if out.PromptID == "" {
		return "", ErrNoPromptID
	}
	c.logger.Debug().Str("prompt_id", out.PromptID).Int("number", out.Number).Msg("comfyui: prompt queued")
	return out.PromptID, nil
}

// History returns the entry for one prompt. ok is false while ComfyUI has
// no record of it yet.
func (c *Client) History(ctx context.Context, promptID string) (HistoryEntry, bool, error) {
	raw, _, err := c.do(ctx, http.MethodGet, "/history/"+url.PathEscape(promptID), "", nil)
	if err != nil {
		return HistoryEntry{}, false, err
	}
	var all map[string]HistoryEntry
	if err := json.Unmarshal(raw, &all); err != nil {
		return HistoryEntry{}, false, fmt.Errorf("comfyui: decode history: %w", err)
	}
	entry, ok := all[promptID]
	return entry, ok, nil
}

// AllHistory returns ComfyUI's whole history document unchanged.
func (c *Client) AllHistory(ctx context.Context) (json.RawMessage, error) {
	raw, _, err := c.do(ctx, http.MethodGet, "/history", "", nil)
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, errors.New("comfyui: history is not valid JSON")
	}
	return raw, nil
}

// WaitForCompletion polls history with exponential backoff until the
// prompt is done.
func (c *Client) WaitForCompletion(ctx context.Context, promptID string) (HistoryEntry, error) {
	wait := c.pollInterval
	for attempt := 1; attempt <= c.maxPolls; attempt++ {
		entry, ok, err := c.History(ctx, promptID)
		if err != nil {
			return HistoryEntry{}, err
		}
		if ok && entry.Done() {
			if entry.Failed() {
				return entry, fmt.Errorf("%w: %s", ErrFailed, promptID)
			}
			return entry, nil
		}
		if attempt == c.maxPolls {
			break
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return HistoryEntry{}, ctx.Err()
		case <-timer.C:
		}
		wait *= 2
		if wait > c.maxPollInterval {
			wait = c.maxPollInterval
		}
	}
	return HistoryEntry{}, fmt.Errorf("%w: %s after %d polls", ErrNotReady, promptID, c.maxPolls)
}

// View downloads an output or input file.
func (c *Client) View(ctx context.Context, ref ImageRef) ([]byte, string, error) {
	if ref.Filename == "" {
		return nil, "", errors.New("comfyui: filename is required")
	}
	q := url.Values{"filename": {ref.Filename}}
	q.Set("subfolder", ref.Subfolder)
	q.Set("type", coalesce(ref.Type, "output"))
	data, contentType, err := c.do(ctx, http.MethodGet, "/view?"+q.Encode(), "", nil)
	if err != nil {
		return nil, "", err
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

type uploadResponse struct {
	Name      string `json:"name"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// UploadImage stores data in ComfyUI's input folder and returns the name
// ComfyUI assigned, which may differ from name when overwrite is false.
func (c *Client) UploadImage(ctx context.Context, name string, data []byte, overwrite bool) (ImageRef, error) {
	name = path.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == "/" {
		return ImageRef{}, errors.New("comfyui: upload name is required")
	}
	if len(data) == 0 {
		return ImageRef{}, errors.New("comfyui: upload is empty")
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, name))
	header.Set("Content-Type", http.DetectContentType(data))
	part, err := mw.CreatePart(header)
	if err != nil {
		return ImageRef{}, fmt.Errorf("comfyui: create upload part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return ImageRef{}, fmt.Errorf("comfyui: write upload part: %w", err)
	}
	if err := mw.WriteField("type", "input"); err != nil {
		return ImageRef{}, err
	}
	if err := mw.WriteField("overwrite", strconv.FormatBool(overwrite)); err != nil {
		return ImageRef{}, err
	}
	if err := mw.Close(); err != nil {
		return ImageRef{}, fmt.Errorf("comfyui: close upload body: %w", err)
	}
	raw, _, err := c.do(ctx, http.MethodPost, "/upload/image", mw.FormDataContentType(), buf.Bytes())
	if err != nil {
		return ImageRef{}, err
	}
	var out uploadResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return ImageRef{}, fmt.Errorf("comfyui: decode upload response: %w", err)
	}
	if out.Name == "" {
		return ImageRef{}, errors.New("comfyui: upload response has no name")
	}
	return ImageRef{Filename: out.Name, Subfolder: out.Subfolder, Type: coalesce(out.Type, "input")}, nil
}

// Image is a rendered output.
type Image struct {
	PromptID string
	Ref      ImageRef
	Data     []byte
	MIMEType string
}

// Run queues workflow, waits for it and downloads its first output image,
// preferring OutputNode.
func (c *Client) Run(ctx context.Context, workflow json.RawMessage) (*Image, error) {
	promptID, err := c.QueuePrompt(ctx, workflow)
	if err != nil {
		return nil, err
	}
	entry, err := c.WaitForCompletion(ctx, promptID)
	if err != nil {
		return nil, err
	}
	refs := entry.OutputImages(OutputNode)
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoOutput, promptID)
	}
	data, mimeType, err := c.View(ctx, refs[0])
	if err != nil {
		return nil, err
	}
	c.logger.Info().Str("prompt_id", promptID).Str("filename", refs[0].Filename).Int("bytes", len(data)).Msg("comfyui: image ready")
	return &Image{PromptID: promptID, Ref: refs[0], Data: data, MIMEType: mimeType}, nil
}

type result struct {
	body        []byte
	contentType string
}

func (c *Client) do(ctx context.Context, method, ref, contentType string, body []byte) ([]byte, string, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+ref, reader)
		if err != nil {
			return nil, fmt.Errorf("comfyui: build request: %w", err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("comfyui: %s %s: %w", method, pathOnly(ref), err)
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("comfyui: read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &StatusError{Method: method, Path: pathOnly(ref), Status: resp.StatusCode, Body: truncate(strings.TrimSpace(string(raw)), 512)}
		}
		return result{body: raw, contentType: resp.Header.Get("Content-Type")}, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, "", fmt.Errorf("%w: comfyui: %v", domain.ErrUnavailable, err)
	}
	if err != nil {
		return nil, "", err
	}
	r := out.(result)
	return r.body, r.contentType, nil
}

func pathOnly(ref string) string {
	p, _, _ := strings.Cut(ref, "?")
	return p
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
