package domain

import "time"

// JobKind enumerates the generation runs that are recorded.
type JobKind string

const (
	JobKindPrompt  JobKind = "prompt"
	JobKindImage   JobKind = "image"
	JobKindInpaint JobKind = "inpaint"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Job is one recorded generation run.
type Job struct {
	ID         string    `json:"id"`
	Kind       JobKind   `json:"kind"`
	PostType   string    `json:"post_type,omitempty"`
	Prompt     string    `json:"prompt,omitempty"`
	Status     JobStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	StorageKey string    `json:"storage_key,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
