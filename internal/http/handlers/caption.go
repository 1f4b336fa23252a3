package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"studio/internal/domain"
)

var validate = validator.New()

const captionTemplate = `
You are an expert social media strategist and AI image analyst. Your task is to generate a creative and engaging caption along with relevant hashtags for an AI-generated image.

**Image Details:**
- **Positive Prompt:** %s
- **Negative Prompt:** %s

**Instructions:**
1. Understand the theme, subject, and mood from the positive prompt.
2. Ensure elements in the negative prompt are avoided.
3. Generate a concise and captivating caption (within 15 words).
4. Provide 10-15 hashtags that are relevant, balancing popular and niche keywords.

**Output Format (strictly follow this structure):**
Caption: "Your creative caption here."
Hashtags: #hashtag1 #hashtag2 #hashtag3 ... #hashtag15
`

// CaptionPrompt builds the caption and hashtag instruction for a generated
// prompt pair. Nothing is sent to a model.
func (a *App) CaptionPrompt(w http.ResponseWriter, r *http.Request) {
	var req domain.CaptionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		a.fail(w, http.StatusUnprocessableEntity, "Invalid request body.")
		return
	}
	req.PositivePrompt = strings.TrimSpace(req.PositivePrompt)
	req.NegativePrompt = strings.TrimSpace(req.NegativePrompt)
	if err := validate.Struct(req); err != nil {
		a.fail(w, http.StatusUnprocessableEntity, "positive_prompt is required")
		return
	}
	a.json(w, http.StatusOK, map[string]string{
		"generated_prompt": fmt.Sprintf(captionTemplate, req.PositivePrompt, req.NegativePrompt),
	})
}
