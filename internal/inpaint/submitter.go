// Package inpaint bundles an image, its painted mask, the prompts and the
// workflow template into one multipart request and returns the generated image.
package inpaint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync/atomic"
	"time"

	"studio/internal/infra"
)

const (
	DefaultEndpoint     = "http://127.0.0.1:8000/inpaint"
	DefaultWorkflowPath = "./assets/inpaint_api.json"
)

// Multipart part names and filenames expected by the /inpaint endpoint.
const (
	FieldPositive = "positive_prompt"
	FieldNegative = "negative_prompt"
	FieldWorkflow = "prompt_file"
	FieldImage    = "image"
	FieldMask     = "mask"

	WorkflowFilename = "inpaint_api.json"
	ImageFilename    = "uploaded_image.png"
	MaskFilename     = "mask.png"
)

var (
	ErrNoImage     = errors.New("inpaint: no image loaded")
	ErrNoMask      = errors.New("inpaint: no mask surface")
	ErrEmptyPrompt = errors.New("inpaint: positive prompt is empty")
	ErrMissingData = errors.New("missing image or mask")
	ErrWorkflow    = errors.New("failed to load workflow JSON")
	ErrGenerate    = errors.New("failed to get the generated image")
	ErrBusy        = errors.New("a submission is already in progress")
)

// ValidationError is raised before any network activity. Message is the
// text shown to the user in a blocking alert.
type ValidationError struct {
	Err     error
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }

// MaskEncoder produces the PNG bytes of the current mask.
type MaskEncoder interface {
	PNG() ([]byte, error)
}

// Submission is everything collected from the editor for one request.
type Submission struct {
	Image    []byte
	Mask     MaskEncoder
	Positive string
	Negative string
}

// Result is the generated image returned by the backend.
type Result struct {
	Image    []byte
	MIMEType string
}

type Options struct {
	Endpoint   string
	Workflow   string
	HTTPClient *http.Client
	Logger     infra.Logger
}

// Submitter sends inpainting requests. Only one request may be in flight.
type Submitter struct {
	endpoint string
	workflow *WorkflowSource
	client   *http.Client
	logger   infra.Logger
	inflight atomic.Bool
}

func New(opts Options) *Submitter {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Submitter{
		endpoint: endpoint,
		workflow: NewWorkflowSource(opts.Workflow, client),
		client:   client,
		logger:   opts.Logger,
	}
}

// Endpoint returns the URL submissions are posted to.
func (s *Submitter) Endpoint() string { return s.endpoint }

// Pending reports whether a submission is running.
func (s *Submitter) Pending() bool { return s.inflight.Load() }

// Validate checks the client-side preconditions.
func Validate(sub Submission) error {
	if len(sub.Image) == 0 {
		return &ValidationError{Err: ErrNoImage, Message: "Please upload an image and create a mask before sending."}
	}
	if sub.Mask == nil {
		return &ValidationError{Err: ErrNoMask, Message: "Please upload an image and create a mask before sending."}
	}
	if strings.TrimSpace(sub.Positive) == "" {
		return &ValidationError{Err: ErrEmptyPrompt, Message: "Please enter a positive prompt."}
	}
	return nil
}

// Submit validates, loads the workflow, encodes the mask and posts the
// multipart body. Nothing is retried.
func (s *Submitter) Submit(ctx context.Context, sub Submission) (*Result, error) {
	if err := Validate(sub); err != nil {
		return nil, err
	}
	if !s.inflight.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.inflight.Store(false)

	start := time.Now()
	workflow, err := s.workflow.Load(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("source", s.workflow.Location()).Msg("inpaint workflow load failed")
		return nil, fmt.Errorf("%w: %v", ErrWorkflow, err)
	}

	maskPNG, err := sub.Mask.PNG()
	if err != nil || len(maskPNG) == 0 {
		return nil, &ValidationError{Err: ErrMissingData, Message: "Missing image or mask."}
	}

	body, contentType, err := buildBody(sub, workflow, maskPNG)
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error().Err(err).Str("endpoint", s.endpoint).Msg("inpaint request failed")
		return nil, fmt.Errorf("%w: %v", ErrGenerate, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		s.logger.Warn().Int("status", resp.StatusCode).Msg("inpaint backend rejected request")
		return nil, fmt.Errorf("%w: status %d", ErrGenerate, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerate, err)
	}
	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	s.logger.Info().Int("bytes", len(data)).Dur("took", time.Since(start)).Msg("inpaint result received")
	return &Result{Image: data, MIMEType: mimeType}, nil
}

func buildBody(sub Submission, workflow, maskPNG []byte) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField(FieldPositive, strings.TrimSpace(sub.Positive)); err != nil {
		return nil, "", err
	}
	if err := writer.WriteField(FieldNegative, strings.TrimSpace(sub.Negative)); err != nil {
		return nil, "", err
	}
	files := []struct {
		field, filename, mime string
		data                  []byte
	}{
		{FieldWorkflow, WorkflowFilename, "application/json", workflow},
		{FieldImage, ImageFilename, http.DetectContentType(sub.Image), sub.Image},
		{FieldMask, MaskFilename, "image/png", maskPNG},
	}
	for _, f := range files {
		if err := writeFile(writer, f.field, f.filename, f.mime, f.data); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, field, filename, mimeType string, data []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}
