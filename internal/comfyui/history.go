package comfyui

import "sort"

// ImageRef points at a file ComfyUI can serve from /view.
type ImageRef struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

type NodeOutput struct {
	Images []ImageRef `json:"images"`
}

type EntryStatus struct {
	StatusStr string `json:"status_str"`
	Completed bool   `json:"completed"`
}

// HistoryEntry is the record ComfyUI keeps for one prompt.
type HistoryEntry struct {
	Outputs map[string]NodeOutput `json:"outputs"`
	Status  EntryStatus           `json:"status"`
}

// Done reports whether the prompt finished, successfully or not.
func (e HistoryEntry) Done() bool {
	return e.Status.Completed || e.Status.StatusStr == "error" || len(e.Outputs) > 0
}

func (e HistoryEntry) Failed() bool {
	return e.Status.StatusStr == "error"
}

// OutputImages lists output images, those of prefer first and the other
// nodes after in id order.
func (e HistoryEntry) OutputImages(prefer string) []ImageRef {
	var out []ImageRef
	if o, ok := e.Outputs[prefer]; ok {
		out = append(out, o.Images...)
	}
	ids := make([]string, 0, len(e.Outputs))
	for id := range e.Outputs {
		if id != prefer {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		out = append(out, e.Outputs[id].Images...)
	}
	return out
}
