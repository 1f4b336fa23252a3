package composer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// ErrEmptyImage is reported when the image stage returns no bytes.
var ErrEmptyImage = errors.New("Received an empty image response")

// Stage identifies a step of the generation pipeline.
type Stage int

const (
	StageIdle Stage = iota
	StagePrompt
	StageImage
)

func (s Stage) String() string {
	switch s {
	case StagePrompt:
		return "prompt"
	case StageImage:
		return "image"
	default:
		return "idle"
	}
}

// PromptResult is the output of the prompt stage.
type PromptResult struct {
	GeneratedPrompt string
	WorkflowData    json.RawMessage
}

// ImageResult is the output of the image stage.
type ImageResult struct {
	Data     []byte
	MIMEType string
	DataURL  string
}

// Outcome is the result of one pipeline run. When Err is set, FailedStage
// tells which stage failed and Prompt holds the stage-one result if it got that far.
type Outcome struct {
	Prompt      *PromptResult
	Image       *ImageResult
	FailedStage Stage
	Err         error
}

func (o Outcome) Failed() bool { return o.Err != nil }

// Render is the text shown in the result region. It is never blank.
func (o Outcome) Render() string {
	var b strings.Builder
	switch {
	case o.Prompt != nil && o.Err != nil:
		b.WriteString(o.Prompt.GeneratedPrompt)
	case o.Prompt != nil:
		b.WriteString(coalesce(o.Prompt.GeneratedPrompt, "No prompt generated"))
	default:
		b.WriteString("Error generating prompt")
	}
	if o.Err != nil {
		b.WriteString("\n\nError: ")
		b.WriteString(o.Err.Error())
		return b.String()
	}
	b.WriteString("\n\nImage generated successfully!")
	return b.String()
}

// Pipeline runs prompt generation followed by image generation. The second
// stage always uses the workflow returned by the first.
type Pipeline struct {
	backend Backend
}

func NewPipeline(backend Backend) *Pipeline {
	return &Pipeline{backend: backend}
}

// Run executes both stages in order. progress is called as each stage starts.
func (p *Pipeline) Run(ctx context.Context, payload map[string]string, progress func(Stage)) Outcome {
	if progress == nil {
		progress = func(Stage) {}
	}
	var out Outcome

	progress(StagePrompt)
	resp, err := p.backend.GeneratePrompt(ctx, payload)
	if err != nil {
		out.FailedStage, out.Err = StagePrompt, err
		return out
	}
	out.Prompt = &PromptResult{GeneratedPrompt: resp.GeneratedPrompt, WorkflowData: resp.WorkflowData}

	progress(StageImage)
	data, mimeType, err := p.backend.GenerateImage(ctx, resp.WorkflowData)
	if err == nil && len(data) == 0 {
		err = ErrEmptyImage
	}
	if err != nil {
		out.FailedStage, out.Err = StageImage, err
		return out
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	out.Image = &ImageResult{
		Data:     data,
		MIMEType: mimeType,
		DataURL:  "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
	}
	return out
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
