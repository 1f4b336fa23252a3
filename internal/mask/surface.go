// Package mask implements the erase-to-transparent drawing surface used to
// build inpainting masks. The mask is the alpha channel of the loaded image:
// painted regions become transparent, everything else keeps its pixels.
package mask

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// DefaultFilename is the name offered by the download-mask action.
const DefaultFilename = "alpha_masked_image.png"

// ErrNotLoaded is returned by operations that need pixels before an image was loaded.
var ErrNotLoaded = errors.New("mask: no image loaded")

// Point is a coordinate in either screen or image space.
type Point struct {
	X, Y float64
}

// Rect is the on-screen area the surface is displayed in.
type Rect struct {
	MinX, MinY    float64
	Width, Height float64
}

// Surface owns the pixel buffer backing the editor. It is safe to export from
// one goroutine while another paints.
type Surface struct {
	mu       sync.RWMutex
	img      *image.NRGBA
	brush    *Brush
	painting bool
}

// Load decodes an image (png, jpeg, gif, bmp, tiff or webp) and sizes the
// surface to its native dimensions.
func Load(r io.Reader) (*Surface, error) {
	src, err := imaging.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("mask: decode image: %w", err)
	}
	return FromImage(src), nil
}

// LoadFile opens path and calls Load.
func LoadFile(path string) (*Surface, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mask: open image: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// FromImage copies src into a new surface with a default brush.
func FromImage(src image.Image) *Surface {
	return &Surface{img: imaging.Clone(src), brush: NewBrush()}
}

// Size returns the backing buffer dimensions.
func (s *Surface) Size() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.img == nil {
		return 0, 0
	}
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Brush returns the brush used for strokes.
func (s *Surface) Brush() *Brush {
	return s.brush
}

// Painting reports whether a stroke is in progress.
func (s *Surface) Painting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.painting
}

// PointerDown starts a stroke. Pressing does not stamp by itself; the first
// move does.
func (s *Surface) PointerDown() {
	s.mu.Lock()
	s.painting = true
	s.mu.Unlock()
}

// PointerUp ends the stroke.
func (s *Surface) PointerUp() {
	s.mu.Lock()
	s.painting = false
	s.mu.Unlock()
}

// PointerLeave ends the stroke when the pointer exits the display area.
func (s *Surface) PointerLeave() {
	s.PointerUp()
}

// PointerMove erases a brush-sized circle under the pointer while painting.
// It reports whether anything was stamped. Samples are not interpolated, so
// fast motion leaves gaps.
func (s *Surface) PointerMove(screen Point, view Rect) bool {
	if !s.Painting() {
		return false
	}
	p, ok := s.ToImage(screen, view)
	if !ok {
		return false
	}
	s.EraseCircle(p, float64(s.brush.Radius()))
	return true
}

// ToImage converts a screen point into image space using the ratio of the
// backing size to the displayed size.
func (s *Surface) ToImage(screen Point, view Rect) (Point, bool) {
	w, h := s.Size()
	if w == 0 || h == 0 || view.Width <= 0 || view.Height <= 0 {
		return Point{}, false
	}
	scaleX := float64(w) / view.Width
	scaleY := float64(h) / view.Height
	return Point{
		X: (screen.X - view.MinX) * scaleX,
		Y: (screen.Y - view.MinY) * scaleY,
	}, true
}

// EraseCircle clears a filled circle using destination-out compositing:
// alpha is multiplied by one minus the anti-aliased coverage.
func (s *Surface) EraseCircle(center Point, radius float64) {
	if radius <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return
	}
	b := s.img.Bounds()
	x0 := max(b.Min.X, int(math.Floor(center.X-radius-1)))
	y0 := max(b.Min.Y, int(math.Floor(center.Y-radius-1)))
	x1 := min(b.Max.X, int(math.Ceil(center.X+radius+1)))
	y1 := min(b.Max.Y, int(math.Ceil(center.Y+radius+1)))

	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			cov := coverage(float64(x)+0.5, float64(y)+0.5, center, radius)
			if cov <= 0 {
				continue
			}
			i := s.img.PixOffset(x, y)
			a := float64(s.img.Pix[i+3]) * (1 - cov)
			if a < 0.5 {
				// fully cleared pixels are transparent black, as a canvas exports them
				s.img.Pix[i], s.img.Pix[i+1], s.img.Pix[i+2], s.img.Pix[i+3] = 0, 0, 0, 0
				continue
			}
			s.img.Pix[i+3] = uint8(math.Round(a))
		}
	}
}

// coverage approximates how much of a one-pixel square centred at (px, py)
// lies inside the circle.
func coverage(px, py float64, c Point, r float64) float64 {
	d := math.Hypot(px-c.X, py-c.Y)
	return math.Max(0, math.Min(1, r+0.5-d))
}

// At returns the pixel at (x, y) in image space.
func (s *Surface) At(x, y int) color.NRGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.img == nil {
		return color.NRGBA{}
	}
	return s.img.NRGBAAt(x, y)
}

// Image returns a copy of the current buffer.
func (s *Surface) Image() *image.NRGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.img == nil {
		return nil
	}
	return imaging.Clone(s.img)
}

// EncodePNG writes the buffer as PNG.
func (s *Surface) EncodePNG(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.img == nil {
		return ErrNotLoaded
	}
	if err := imaging.Encode(w, s.img, imaging.PNG); err != nil {
		return fmt.Errorf("mask: encode png: %w", err)
	}
	return nil
}

// PNG returns the PNG-encoded buffer.
func (s *Surface) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveFile writes the mask to path, defaulting to DefaultFilename.
func (s *Surface) SaveFile(path string) (string, error) {
	if path == "" {
		path = DefaultFilename
	}
	data, err := s.PNG()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("mask: write file: %w", err)
	}
	return path, nil
}
