package inpaint

import "sync"

// ResultSlot is the single place a generated image or error is shown.
// Repeated submissions overwrite it rather than adding new entries.
type ResultSlot struct {
	mu      sync.RWMutex
	image   *Result
	errText string
	visible bool
}

// Show replaces the displayed image and clears any previous error.
func (r *ResultSlot) Show(res *Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.image = res
	r.errText = ""
	r.visible = true
}

// Fail sets the error text region. The last image stays in place.
func (r *ResultSlot) Fail(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errText = "Error: " + err.Error()
	r.visible = true
}

func (r *ResultSlot) Image() *Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.image
}

func (r *ResultSlot) ErrorText() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.errText
}

func (r *ResultSlot) Visible() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.visible
}
