package imaging

import (
	"errors"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// ErrEmptyImage is returned for images without pixels.
var ErrEmptyImage = errors.New("imaging: empty image")

// Image is decoded pixel data in row-major, non-premultiplied RGBA.
type Image struct {
	Width  int
	Height int
	Pixels []color.NRGBA
}

// FromImage copies any image.Image into an Image.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	dst, ok := src.(*image.NRGBA)
	if !ok || b.Min != (image.Point{}) {
		dst = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	}
	return fromNRGBA(dst)
}

func fromNRGBA(m *image.NRGBA) *Image {
	w, h := m.Rect.Dx(), m.Rect.Dy()
	img := &Image{Width: w, Height: h, Pixels: make([]color.NRGBA, 0, w*h)}
	for y := 0; y < h; y++ {
		row := m.Pix[y*m.Stride : y*m.Stride+w*4]
		for x := 0; x < w*4; x += 4 {
			img.Pixels = append(img.Pixels, color.NRGBA{R: row[x], G: row[x+1], B: row[x+2], A: row[x+3]})
		}
	}
	return img
}

// Size returns the dimensions as floats, the form UI layouts expect.
func (img *Image) Size() (float32, float32) {
	return float32(img.Width), float32(img.Height)
}

// Empty reports whether img has no pixels.
func (img *Image) Empty() bool {
	return img == nil || img.Width <= 0 || img.Height <= 0 || len(img.Pixels) < img.Width*img.Height
}

// At returns the pixel at x, y.
func (img *Image) At(x, y int) color.NRGBA {
	return img.Pixels[y*img.Width+x]
}

// NRGBA converts img back into an *image.NRGBA.
func (img *Image) NRGBA() *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for i, p := range img.Pixels {
		m.Pix[i*4+0] = p.R
		m.Pix[i*4+1] = p.G
		m.Pix[i*4+2] = p.B
		m.Pix[i*4+3] = p.A
	}
	return m
}

// Thumbnail returns a copy scaled by factor (0 < factor), with at least one
// pixel per side.
func (img *Image) Thumbnail(factor float64) *Image {
	if img.Empty() || factor <= 0 {
		return &Image{}
	}
	w := max(int(float64(img.Width)*factor), 1)
	h := max(int(float64(img.Height)*factor), 1)

	src := img.NRGBA()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return fromNRGBA(dst)
}
