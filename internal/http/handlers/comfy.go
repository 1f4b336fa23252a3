package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"studio/internal/comfyui"
	"studio/internal/domain"
)

const invalidFileType = "Invalid file type. Only PNG, JPG, JPEG, GIF, BMP, TIFF, and WEBP are allowed."

var allowedExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "bmp": true, "tiff": true, "webp": true,
}

func allowedFile(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	return allowedExtensions[ext]
}

// QueuePrompt forwards a workflow without waiting for it.
func (a *App) QueuePrompt(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerateImageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		a.fail(w, http.StatusBadRequest, "Missing required parameters")
		return
	}
	data := bytes.TrimSpace(req.WorkflowData)
	if len(data) == 0 || string(data) == "null" || string(data) == "{}" {
		a.fail(w, http.StatusBadRequest, "Missing required parameters")
		return
	}
	promptID, err := a.Comfy.QueuePrompt(r.Context(), data)
	if err != nil {
		a.failErr(w, r, fmt.Errorf("Error queuing prompt: %w", err))
		return
	}
	a.json(w, http.StatusOK, domain.QueueResponse{Message: "Prompt queued successfully", PromptID: promptID})
}

// GetHistory returns ComfyUI's history document.
func (a *App) GetHistory(w http.ResponseWriter, r *http.Request) {
	raw, err := a.Comfy.AllHistory(r.Context())
	if err != nil {
		a.failErr(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]json.RawMessage{"all_prompts": raw})
}

// TrackProgress blocks until the prompt finishes.
func (a *App) TrackProgress(w http.ResponseWriter, r *http.Request) {
	promptID := chi.URLParam(r, "prompt_id")
	if _, err := a.Comfy.WaitForCompletion(r.Context(), promptID); err != nil {
		a.failErr(w, r, err)
		return
	}
	a.json(w, http.StatusOK, domain.ProgressResponse{Status: "completed", Message: fmt.Sprintf("Prompt %s completed", promptID)})
}

// GetImage proxies ComfyUI's /view.
func (a *App) GetImage(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	ref := comfyui.ImageRef{
		Filename:  strings.TrimSpace(params.Get("filename")),
		Subfolder: params.Get("subfolder"),
		Type:      params.Get("type"),
	}
	if ref.Filename == "" {
		a.fail(w, http.StatusUnprocessableEntity, "filename is required")
		return
	}
	data, mimeType, err := a.Comfy.View(r.Context(), ref)
	if err != nil {
		a.failErr(w, r, err)
		return
	}
	writeImage(w, data, mimeType, path.Base(ref.Filename))
}

// parseUpload bounds the body and parses a multipart form. Each file part
// may be up to MaxUploadSize; the body as a whole gets room for three.
func (a *App) parseUpload(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, 3*a.MaxUploadSize+1<<20)
	return r.ParseMultipartForm(32 << 20)
}

func (a *App) readPart(r *http.Request, field string) ([]byte, *multipart.FileHeader, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()
	if header.Size > a.MaxUploadSize {
		return nil, nil, &http.MaxBytesError{Limit: a.MaxUploadSize}
	}
	data, err := io.ReadAll(io.LimitReader(file, a.MaxUploadSize+1))
	if err != nil {
		return nil, nil, err
	}
	return data, header, nil
}

func (a *App) uploadFailure(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		a.fail(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds the %d byte upload limit.", a.MaxUploadSize))
		return
	}
	a.fail(w, http.StatusBadRequest, err.Error())
}

// UploadImage stores an image in ComfyUI's input folder.
func (a *App) UploadImage(w http.ResponseWriter, r *http.Request) {
	if err := a.parseUpload(w, r); err != nil {
		a.uploadFailure(w, r, err)
		return
	}
	data, header, err := a.readPart(r, "image")
	if err != nil {
		a.uploadFailure(w, r, err)
		return
	}
	if !allowedFile(header.Filename) {
		a.fail(w, http.StatusBadRequest, invalidFileType)
		return
	}
	name := strings.TrimSpace(r.FormValue("filename"))
	if name == "" {
		name = header.Filename
	}
	overwrite := strings.EqualFold(strings.TrimSpace(r.FormValue("overwrite")), "true")
	ref, err := a.Comfy.UploadImage(r.Context(), name, data, overwrite)
	if err != nil {
		a.failErr(w, r, fmt.Errorf("Error uploading image: %w", err))
		return
	}
	a.json(w, http.StatusOK, map[string]string{"name": ref.Filename, "subfolder": ref.Subfolder, "type": ref.Type})
}

// Inpaint uploads the image and its mask, points the workflow's loader
// nodes at them and returns the rendered image.
func (a *App) Inpaint(w http.ResponseWriter, r *http.Request) {
	if err := a.parseUpload(w, r); err != nil {
		a.uploadFailure(w, r, err)
		return
	}
	image, imageHdr, imgErr := a.readPart(r, "image")
	mask, maskHdr, maskErr := a.readPart(r, "mask")
	for _, err := range []error{imgErr, maskErr} {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			a.uploadFailure(w, r, err)
			return
		}
	}
	if imgErr != nil || maskErr != nil || len(image) == 0 || len(mask) == 0 {
		a.fail(w, http.StatusBadRequest, "missing image or mask")
		return
	}
	workflow, _, err := a.readPart(r, "prompt_file")
	if err != nil {
		a.fail(w, http.StatusBadRequest, "missing prompt_file")
		return
	}
	wf, err := comfyui.ParseWorkflow(workflow)
	if err != nil {
		a.fail(w, http.StatusBadRequest, "Invalid JSON file")
		return
	}

	imageRef, err := a.Comfy.UploadImage(r.Context(), coalesce(imageHdr.Filename, "uploaded_image.png"), image, false)
	if err != nil {
		a.failErr(w, r, fmt.Errorf("Failed to upload image: %w", err))
		return
	}
	maskRef, err := a.Comfy.UploadImage(r.Context(), coalesce(maskHdr.Filename, "mask.png"), mask, false)
	if err != nil {
		a.failErr(w, r, fmt.Errorf("Failed to upload mask: %w", err))
		return
	}
	a.Logger.Info().Str("image", imageRef.Filename).Str("mask", maskRef.Filename).Msg("inpaint inputs uploaded")

	if err := wf.SetInput(comfyui.InpaintImageNode, "image", inputName(imageRef)); err != nil {
		a.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := wf.SetInput(comfyui.InpaintMaskNode, "image", inputName(maskRef)); err != nil {
		a.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if positive := strings.TrimSpace(r.FormValue("positive_prompt")); positive != "" && wf.Has(comfyui.PositiveNode) {
		_ = wf.SetInput(comfyui.PositiveNode, "text", positive)
	}
	if negative := strings.TrimSpace(r.FormValue("negative_prompt")); negative != "" && wf.Has(comfyui.NegativeNode) {
		_ = wf.SetInput(comfyui.NegativeNode, "text", negative)
	}
	a.runWorkflow(w, r, domain.JobKindInpaint, wf)
}

// inputName is how loader nodes refer to an uploaded file.
func inputName(ref comfyui.ImageRef) string {
	if ref.Subfolder == "" {
		return ref.Filename
	}
	return path.Join(ref.Subfolder, ref.Filename)
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
