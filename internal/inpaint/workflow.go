package inpaint

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// WorkflowSource reads the static workflow template, either from a local
// file or from an http(s) URL. The bytes are forwarded untouched.
type WorkflowSource struct {
	location string
	client   *http.Client
}

func NewWorkflowSource(location string, client *http.Client) *WorkflowSource {
	location = strings.TrimSpace(location)
	if location == "" {
		location = DefaultWorkflowPath
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &WorkflowSource{location: location, client: client}
}

func (w *WorkflowSource) Location() string { return w.location }

func (w *WorkflowSource) Load(ctx context.Context) ([]byte, error) {
	if strings.HasPrefix(w.location, "http://") || strings.HasPrefix(w.location, "https://") {
		return w.fetch(ctx)
	}
	data, err := os.ReadFile(w.location)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s is empty", w.location)
	}
	return data, nil
}

func (w *WorkflowSource) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
