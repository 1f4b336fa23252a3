package mask

import "sync/atomic"

// Brush bounds mirror the range control offered by the editor.
const (
	MinRadius     = 1
	MaxRadius     = 100
	DefaultRadius = 20
)

// Brush holds the radius used for erase strokes.
type Brush struct {
	radius atomic.Int32
}

func NewBrush() *Brush {
	b := &Brush{}
	b.radius.Store(DefaultRadius)
	return b
}

func (b *Brush) Radius() int {
	return int(b.radius.Load())
}

// SetRadius clamps r to [MinRadius, MaxRadius] and returns the stored value.
func (b *Brush) SetRadius(r int) int {
	r = max(MinRadius, min(MaxRadius, r))
	b.radius.Store(int32(r))
	return r
}

// Grow changes the radius by delta, clamped.
func (b *Brush) Grow(delta int) int {
	return b.SetRadius(b.Radius() + delta)
}
