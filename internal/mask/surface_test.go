package mask

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"testing"
)

func opaqueImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestLoadMatchesImageDimensions(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		encode func(*bytes.Buffer, image.Image) error
	}{
		{name: "png", w: 37, h: 21, encode: func(b *bytes.Buffer, img image.Image) error { return png.Encode(b, img) }},
		{name: "jpeg", w: 64, h: 48, encode: func(b *bytes.Buffer, img image.Image) error { return jpeg.Encode(b, img, nil) }},
		{name: "single pixel", w: 1, h: 1, encode: func(b *bytes.Buffer, img image.Image) error { return png.Encode(b, img) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tc.encode(&buf, opaqueImage(tc.w, tc.h)); err != nil {
				t.Fatalf("encode: %v", err)
			}
			s, err := Load(&buf)
			if err != nil {
				t.Fatalf("Load returned error: %v", err)
			}
			w, h := s.Size()
			if w != tc.w || h != tc.h {
				t.Fatalf("Size() = %dx%d, want %dx%d", w, h, tc.w, tc.h)
			}
		})
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	if _, err := Load(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestPointerMoveErasesAtScaledCoordinate(t *testing.T) {
	s := FromImage(opaqueImage(200, 100))
	s.Brush().SetRadius(10)
	// displayed at half size, offset by (10, 20)
	view := Rect{MinX: 10, MinY: 20, Width: 100, Height: 50}

	s.PointerDown()
	if !s.PointerMove(Point{X: 60, Y: 45}, view) {
		t.Fatalf("PointerMove did not stamp while painting")
	}
	s.PointerUp()

	// screen (60,45) -> image ((60-10)*2, (45-20)*2) = (100, 50)
	if a := s.At(100, 50).A; a != 0 {
		t.Fatalf("centre alpha = %d, want 0", a)
	}
	if a := s.At(100+6, 50).A; a != 0 {
		t.Fatalf("inside radius alpha = %d, want 0", a)
	}
	if a := s.At(100+12, 50).A; a != 255 {
		t.Fatalf("outside radius alpha = %d, want 255", a)
	}
	if a := s.At(50, 25).A; a != 255 {
		t.Fatalf("unscaled coordinate was erased, alpha = %d", a)
	}
	if c := s.At(100, 50); c != (color.NRGBA{}) {
		t.Fatalf("cleared pixel = %+v, want transparent black", c)
	}
}

func TestEraseRadiusFollowsBrush(t *testing.T) {
	for _, radius := range []int{1, 5, 20} {
		s := FromImage(opaqueImage(100, 100))
		s.Brush().SetRadius(radius)
		s.PointerDown()
		s.PointerMove(Point{X: 50.5, Y: 50.5}, Rect{Width: 100, Height: 100})

		inside := 50 + radius - 1
		if a := s.At(inside, 50).A; a != 0 {
			t.Fatalf("radius %d: alpha at %d = %d, want 0", radius, inside, a)
		}
		outside := 50 + radius + 1
		if a := s.At(outside, 50).A; a != 255 {
			t.Fatalf("radius %d: alpha at %d = %d, want 255", radius, outside, a)
		}
	}
}

func TestMoveWithoutPaintingDoesNothing(t *testing.T) {
	s := FromImage(opaqueImage(20, 20))
	view := Rect{Width: 20, Height: 20}
	if s.PointerMove(Point{X: 10, Y: 10}, view) {
		t.Fatalf("PointerMove stamped before PointerDown")
	}
	s.PointerDown()
	s.PointerLeave()
	if s.Painting() {
		t.Fatalf("PointerLeave should end the stroke")
	}
	if s.PointerMove(Point{X: 10, Y: 10}, view) {
		t.Fatalf("PointerMove stamped after leaving")
	}
	if a := s.At(10, 10).A; a != 255 {
		t.Fatalf("alpha = %d, want 255", a)
	}
}

func TestExportDecodesToSameDimensions(t *testing.T) {
	s, err := Load(bytes.NewReader(encodePNG(t, opaqueImage(33, 17))))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	s.PointerDown()
	s.PointerMove(Point{X: 16, Y: 8}, Rect{Width: 33, Height: 17})

	data, err := s.PNG()
	if err != nil {
		t.Fatalf("PNG returned error: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("exported bytes are not a PNG: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 33 || b.Dy() != 17 {
		t.Fatalf("decoded size = %dx%d, want 33x17", b.Dx(), b.Dy())
	}
	if _, _, _, a := decoded.At(16, 8).RGBA(); a != 0 {
		t.Fatalf("erased pixel survived export, alpha = %d", a)
	}
}

func TestSaveFileDefaultName(t *testing.T) {
	dir := t.TempDir()
	s := FromImage(opaqueImage(4, 4))
	path, err := s.SaveFile(filepath.Join(dir, DefaultFilename))
	if err != nil {
		t.Fatalf("SaveFile returned error: %v", err)
	}
	if filepath.Base(path) != "alpha_masked_image.png" {
		t.Fatalf("path = %q", path)
	}
}

func TestEmptySurfaceExport(t *testing.T) {
	var s Surface
	if _, err := s.PNG(); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("err = %v, want ErrNotLoaded", err)
	}
}

func TestBrushBounds(t *testing.T) {
	b := NewBrush()
	if b.Radius() != DefaultRadius {
		t.Fatalf("default radius = %d, want %d", b.Radius(), DefaultRadius)
	}
	tests := []struct {
		in, want int
	}{
		{in: 0, want: MinRadius},
		{in: -5, want: MinRadius},
		{in: 42, want: 42},
		{in: 1000, want: MaxRadius},
	}
	for _, tc := range tests {
		if got := b.SetRadius(tc.in); got != tc.want {
			t.Fatalf("SetRadius(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
	b.SetRadius(99)
	if got := b.Grow(5); got != MaxRadius {
		t.Fatalf("Grow past max = %d, want %d", got, MaxRadius)
	}
}
