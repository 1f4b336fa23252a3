package domain

import "encoding/json"

// PostTypesResponse is returned by GET /post-types.
type PostTypesResponse struct {
	PostTypes []string `json:"post_types"`
}

// FormSchema describes the fields a post type asks for.
type FormSchema struct {
	PostType       string            `json:"post_type"`
	RequiredFields []string          `json:"required_fields"`
	OptionalFields []string          `json:"optional_fields"`
	Example        map[string]string `json:"example"`
}

// Article is one news headline.
type Article struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Published string `json:"published"`
	Source    string `json:"source"`
}

// NewsResponse is returned by the trend endpoints.
type NewsResponse struct {
	FeedTitle string    `json:"feed_title"`
	Articles  []Article `json:"articles"`
}

// NewsQuery selects a Google News feed. Topic is set for searches only.
type NewsQuery struct {
	Category string `json:"category" validate:"omitempty,oneof=WORLD NATION BUSINESS TECHNOLOGY ENTERTAINMENT SPORTS SCIENCE HEALTH"`
	Topic    string `json:"topic" validate:"omitempty,max=200"`
	Lang     string `json:"lang" validate:"required,oneof=en hi es fr uk ja"`
	Country  string `json:"country" validate:"required,oneof=WORLD US IN GB MX UA JP"`
	Limit    int    `json:"limit" validate:"min=1,max=50"`
}

// RefreshResponse acknowledges GET /update_trends.
type RefreshResponse struct {
	Status   string `json:"status"`
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// GeneratePromptResponse is the first stage of the generation pipeline.
type GeneratePromptResponse struct {
	GeneratedPrompt string          `json:"generated_prompt"`
	WorkflowData    json.RawMessage `json:"workflow_data"`
}

// GenerateImageRequest is the body of POST /generate_image and /queue_prompt.
type GenerateImageRequest struct {
	WorkflowData json.RawMessage `json:"workflow_data"`
}

// QueueResponse acknowledges a queued ComfyUI prompt.
type QueueResponse struct {
	Message  string `json:"message"`
	PromptID string `json:"prompt_id"`
}

// ProgressResponse reports completion of a queued prompt.
type ProgressResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CaptionRequest asks for a caption prompt built from a generated pair.
type CaptionRequest struct {
	PositivePrompt string `json:"positive_prompt" validate:"required"`
	NegativePrompt string `json:"negative_prompt"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
