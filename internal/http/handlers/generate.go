package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"studio/internal/comfyui"
	"studio/internal/domain"
)

const maxJSONBody = 4 << 20

// decodeForm reads a flat JSON object. Scalars are stringified so a form
// that sends numbers still works.
func decodeForm(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	var raw map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
		case string:
			out[k] = val
		case json.Number, bool:
			out[k] = fmt.Sprint(val)
		case []any:
			items := make([]string, 0, len(val))
			for _, item := range val {
				if item != nil {
					items = append(items, fmt.Sprint(item))
				}
			}
			out[k] = strings.Join(items, ", ")
		}
	}
	return out, nil
}

// GeneratePrompt turns a filled form into a prompt pair and a workflow
// carrying it.
func (a *App) GeneratePrompt(w http.ResponseWriter, r *http.Request) {
	form, err := decodeForm(w, r)
	if err != nil {
		a.fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	postType := strings.TrimSpace(form["post_type"])
	if postType == "" {
		a.fail(w, http.StatusBadRequest, invalidPostType)
		return
	}
	instruction, err := a.Catalog.BuildInstruction(form)
	if err != nil {
		a.fail(w, http.StatusBadRequest, invalidPostType)
		return
	}

	started := time.Now()
	rec := a.History.Start(r.Context(), domain.JobKindPrompt, postType, instruction)
	resp, err := a.buildPrompt(r, instruction)
	a.observe(domain.JobKindPrompt, started, err)
	if err != nil {
		a.History.Fail(r.Context(), rec, err)
		a.failErr(w, r, err)
		return
	}
	a.History.Succeed(r.Context(), rec, nil, "")
	a.Logger.Info().Str("post_type", postType).Msg("generated prompt")
	a.json(w, http.StatusOK, resp)
}

func (a *App) buildPrompt(r *http.Request, instruction string) (*domain.GeneratePromptResponse, error) {
	pair, err := a.Prompts.Generate(r.Context(), instruction)
	if err != nil {
		return nil, err
	}
	wf := comfyui.DefaultWorkflow()
	if err := wf.SetPrompts(pair.Positive, pair.Negative); err != nil {
		return nil, err
	}
	raw, err := wf.JSON()
	if err != nil {
		return nil, err
	}
	return &domain.GeneratePromptResponse{GeneratedPrompt: pair.Text(), WorkflowData: raw}, nil
}

// requestWorkflow returns the body's workflow_data, or the bundled default
// when it is absent.
func requestWorkflow(w http.ResponseWriter, r *http.Request) (comfyui.Workflow, error) {
	var req domain.GenerateImageRequest
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, fmt.Errorf("Invalid request body: %w", err)
	}
	data := bytes.TrimSpace(req.WorkflowData)
	if len(data) == 0 || string(data) == "null" || string(data) == "{}" {
		return comfyui.DefaultWorkflow(), nil
	}
	wf, err := comfyui.ParseWorkflow(data)
	if err != nil {
		return nil, fmt.Errorf("Invalid workflow_data: %w", err)
	}
	return wf, nil
}

func positiveText(wf comfyui.Workflow) string {
	if node, ok := wf[comfyui.PositiveNode]; ok {
		if text, ok := node.Inputs["text"].(string); ok {
			return text
		}
	}
	return ""
}

// GenerateImage runs a workflow to completion and returns the first image.
func (a *App) GenerateImage(w http.ResponseWriter, r *http.Request) {
	wf, err := requestWorkflow(w, r)
	if err != nil {
		a.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	a.runWorkflow(w, r, domain.JobKindImage, wf)
}

func (a *App) runWorkflow(w http.ResponseWriter, r *http.Request, kind domain.JobKind, wf comfyui.Workflow) {
	raw, err := wf.JSON()
	if err != nil {
		a.failErr(w, r, err)
		return
	}
	started := time.Now()
	rec := a.History.Start(r.Context(), kind, "", positiveText(wf))
	img, err := a.Comfy.Run(r.Context(), raw)
	a.observe(kind, started, err)
	if err != nil {
		a.History.Fail(r.Context(), rec, err)
		a.failErr(w, r, err)
		return
	}
	a.History.Succeed(r.Context(), rec, img.Data, extensionFor(img.MIMEType))
	writeImage(w, img.Data, img.MIMEType, img.Ref.Filename)
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0])) {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}

func writeImage(w http.ResponseWriter, data []byte, mimeType, filename string) {
	if mimeType == "" {
		mimeType = "image/png"
	}
	w.Header().Set("Content-Type", mimeType)
	if filename != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
