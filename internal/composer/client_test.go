package composer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseHost(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "http://127.0.0.1:8000", want: "http://127.0.0.1:8000"},
		{in: " https://example.com/api/ ", want: "https://example.com/api/"},
		{in: "127.0.0.1:8000", wantErr: true},
		{in: "/relative", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			h, err := ParseHost(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseHost(%q) expected error", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHost(%q) error: %v", tc.in, err)
			}
			if h.String() != tc.want {
				t.Fatalf("ParseHost(%q) = %q, want %q", tc.in, h.String(), tc.want)
			}
		})
	}
}

func TestHostJoinTrimsSlash(t *testing.T) {
	h, err := ParseHost("http://localhost:8000/")
	if err != nil {
		t.Fatalf("ParseHost: %v", err)
	}
	if got := h.Join("/post-types"); got != "http://localhost:8000/post-types" {
		t.Fatalf("Join = %q", got)
	}
}

func TestClientEscapesTopicPath(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_ = json.NewEncoder(w).Encode(map[string]any{"feed_title": "t", "articles": []any{}})
	}))
	defer ts.Close()

	host, _ := ParseHost(ts.URL)
	c := NewClient(host, ts.Client())
	if _, err := c.TrendsByTopic(context.Background(), "ai/ml news"); err != nil {
		t.Fatalf("TrendsByTopic: %v", err)
	}
	if gotPath != "/fetch_trends/ai%2Fml%20news" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestClientQueryParameters(t *testing.T) {
	var got []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.URL.Path+"?"+r.URL.RawQuery)
		switch r.URL.Path {
		case "/generate_prompt_form":
			_ = json.NewEncoder(w).Encode(map[string]any{"required_fields": []string{"a"}})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"articles": []any{}})
		}
	}))
	defer ts.Close()

	host, _ := ParseHost(ts.URL)
	c := NewClient(host, nil)
	ctx := context.Background()
	if _, err := c.TrendsByCategory(ctx, "SCIENCE & TECH"); err != nil {
		t.Fatalf("TrendsByCategory: %v", err)
	}
	if err := c.RefreshTrends(ctx, "WORLD"); err != nil {
		t.Fatalf("RefreshTrends: %v", err)
	}
	if _, err := c.FormSchema(ctx, "blog"); err != nil {
		t.Fatalf("FormSchema: %v", err)
	}
	want := []string{
		"/trends?category=SCIENCE+%26+TECH",
		"/update_trends?category=WORLD",
		"/generate_prompt_form?post_type=blog",
	}
	if len(got) != len(want) {
		t.Fatalf("requests = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("request[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClientHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"Invalid post_type."}`))
	}))
	defer ts.Close()

	host, _ := ParseHost(ts.URL)
	_, err := NewClient(host, nil).FormSchema(context.Background(), "nope")
	var herr *HTTPError
	if !errors.As(err, &herr) {
		t.Fatalf("expected *HTTPError, got %v", err)
	}
	if herr.Status != http.StatusBadRequest {
		t.Fatalf("status = %d", herr.Status)
	}
	want := `HTTP error! status: 400, details: {"detail":"Invalid post_type."}`
	if err.Error() != want {
		t.Fatalf("error = %q, want %q", err.Error(), want)
	}
}

func TestClientGenerateImageReturnsBytes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			WorkflowData json.RawMessage `json:"workflow_data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if string(req.WorkflowData) != `{"6":{}}` {
			t.Errorf("workflow_data = %s", req.WorkflowData)
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer ts.Close()

	host, _ := ParseHost(ts.URL)
	data, mimeType, err := NewClient(host, nil).GenerateImage(context.Background(), json.RawMessage(`{"6":{}}`))
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if string(data) != "png-bytes" || mimeType != "image/png" {
		t.Fatalf("got %q %q", data, mimeType)
	}
}
