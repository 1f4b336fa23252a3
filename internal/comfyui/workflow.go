package comfyui

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Node ids of the bundled workflows.
const (
	PositiveNode     = "6"
	NegativeNode     = "7"
	OutputNode       = "9"
	InpaintImageNode = "58"
	InpaintMaskNode  = "62"
)

//go:embed default_workflow.json
var defaultWorkflow []byte

var ErrNodeNotFound = errors.New("workflow node not found")

// Node is one entry of an API-format workflow graph.
type Node struct {
	Inputs    map[string]any    `json:"inputs"`
	ClassType string            `json:"class_type"`
	Meta      map[string]string `json:"_meta,omitempty"`
}

// Workflow is an API-format graph keyed by node id.
type Workflow map[string]*Node

// ParseWorkflow decodes a graph. A document wrapped as {"prompt": {...}}
// is unwrapped.
func ParseWorkflow(data []byte) (Workflow, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil, errors.New("workflow is empty")
	}
	var wrapped struct {
		Prompt json.RawMessage `json:"prompt"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Prompt) > 0 && wrapped.Prompt[0] == '{' {
		data = wrapped.Prompt
	}
	var wf Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("decode workflow: %w", err)
	}
	if len(wf) == 0 {
		return nil, errors.New("workflow has no nodes")
	}
	for id, node := range wf {
		if node == nil || node.ClassType == "" {
			return nil, fmt.Errorf("workflow node %q has no class_type", id)
		}
		if node.Inputs == nil {
			node.Inputs = map[string]any{}
		}
	}
	return wf, nil
}

// DefaultWorkflow returns a fresh copy of the bundled text-to-image graph.
func DefaultWorkflow() Workflow {
	wf, err := ParseWorkflow(defaultWorkflow)
	if err != nil {
		panic(fmt.Sprintf("comfyui: embedded workflow: %v", err))
	}
	return wf
}

// Clone deep-copies the graph through JSON.
func (w Workflow) Clone() (Workflow, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return ParseWorkflow(data)
}

// Has reports whether node id exists.
func (w Workflow) Has(id string) bool {
	_, ok := w[id]
	return ok
}

// SetInput sets one input of node id.
func (w Workflow) SetInput(id, key string, value any) error {
	node, ok := w[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	node.Inputs[key] = value
	return nil
}

// SetPrompts writes the positive and negative text nodes.
func (w Workflow) SetPrompts(positive, negative string) error {
	if err := w.SetInput(PositiveNode, "text", positive); err != nil {
		return err
	}
	return w.SetInput(NegativeNode, "text", negative)
}

// NodeIDs returns the ids in a stable order.
func (w Workflow) NodeIDs() []string {
	ids := make([]string, 0, len(w))
	for id := range w {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (w Workflow) JSON() (json.RawMessage, error) {
	return json.Marshal(w)
}
