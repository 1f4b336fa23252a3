package tui

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"strings"

	"github.com/TheZoraiz/ascii-image-converter/aic_package"
	"github.com/disintegration/imaging"
)

// fit scales a w×h image into at most cols×rows cells. A cell holds two
// vertically stacked pixels, so the pixel height is twice the row count.
func fit(w, h, cols, rows int) (int, int) {
	if w <= 0 || h <= 0 || cols <= 0 || rows <= 0 {
		return 0, 0
	}
	scale := math.Min(float64(cols)/float64(w), float64(rows*2)/float64(h))
	outCols := max(1, int(math.Round(float64(w)*scale)))
	outRows := max(1, int(math.Round(float64(h)*scale/2)))
	return min(outCols, cols), min(outRows, rows)
}

// checker is the backdrop erased pixels are drawn over.
func checker(x, y int) color.NRGBA {
	if (x/2+y/2)%2 == 0 {
		return color.NRGBA{R: 0x66, G: 0x66, B: 0x66, A: 0xff}
	}
	return color.NRGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}
}

func over(c, bg color.NRGBA) color.NRGBA {
	a := uint32(c.A)
	blend := func(f, b uint8) uint8 {
		return uint8((uint32(f)*a + uint32(b)*(255-a)) / 255)
	}
	return color.NRGBA{R: blend(c.R, bg.R), G: blend(c.G, bg.G), B: blend(c.B, bg.B), A: 0xff}
}

// halfBlocks renders img into cols×rows terminal cells using the upper half
// block with a truecolor foreground and background per cell.
func halfBlocks(img image.Image, cols, rows int) string {
	if img == nil || cols <= 0 || rows <= 0 {
		return ""
	}
	scaled := imaging.Resize(img, cols, rows*2, imaging.Box)
	var b strings.Builder
	for row := 0; row < rows; row++ {
		for x := 0; x < cols; x++ {
			top := over(scaled.NRGBAAt(x, row*2), checker(x, row*2))
			bottom := over(scaled.NRGBAAt(x, row*2+1), checker(x, row*2+1))
			fmt.Fprintf(&b, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm▀", top.R, top.G, top.B, bottom.R, bottom.G, bottom.B)
		}
		b.WriteString("\x1b[0m")
		if row < rows-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// asciiArt converts encoded image bytes with ascii-image-converter, which
// only reads from a path.
func asciiArt(data []byte, cols, rows int) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode result: %w", err)
	}
	w, h := fit(src.Bounds().Dx(), src.Bounds().Dy(), cols, rows)

	f, err := os.CreateTemp("", "studio_result_*.png")
	if err != nil {
		return "", err
	}
	defer os.Remove(f.Name())
	if err := imaging.Encode(f, src, imaging.PNG); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	flags := aic_package.DefaultFlags()
	flags.Dimensions = []int{w, h}
	flags.Colored = true
	flags.Braille = true
	return aic_package.Convert(f.Name(), flags)
}

// decodePreview renders encoded image bytes as half blocks within the cell budget.
func decodePreview(data []byte, cols, rows int) (string, error) {
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	c, r := fit(src.Bounds().Dx(), src.Bounds().Dy(), cols, rows)
	return halfBlocks(src, c, r), nil
}
