package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caihong2050-art/futurize/futurize"
)

const redRect = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 20 10" width="20" height="10">
<rect x="0" y="0" width="20" height="10" fill="#ff0000"/>
</svg>`

func encodePNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, m))
	return buf.Bytes()
}

func awaitLoad(t *testing.T, c *futurize.Controller[Stage, *Image]) futurize.Progress[Stage, *Image] {
	t.Helper()
	c.TryDo()
	<-c.Done()
	return c.TryGet()
}

func TestDecodeRaster(t *testing.T) {
	b := NewStdBackend()
	blue := color.NRGBA{B: 255, A: 255}

	img, err := b.DecodeRaster(encodePNG(t, 3, 2, blue))
	require.NoError(t, err)

	w, h := img.Size()
	assert.Equal(t, float32(3), w)
	assert.Equal(t, float32(2), h)
	assert.Len(t, img.Pixels, 6)
	assert.Equal(t, blue, img.At(2, 1))
}

func TestDecodeRaster_Garbage(t *testing.T) {
	_, err := NewStdBackend().DecodeRaster([]byte("not an image"))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDecodeVector(t *testing.T) {
	img, err := NewStdBackend().DecodeVector([]byte(redRect))
	require.NoError(t, err)

	assert.Equal(t, 20, img.Width)
	assert.Equal(t, 10, img.Height)
	p := img.At(10, 5)
	assert.Equal(t, uint8(255), p.R)
	assert.Zero(t, p.G)
	assert.NotZero(t, p.A)
}

func TestDecodeVector_Bounded(t *testing.T) {
	b := NewStdBackend()
	b.VectorSize = 8

	img, err := b.DecodeVector([]byte(redRect))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Width)
	assert.Equal(t, 4, img.Height)
}

func TestDecode_PicksBySniffing(t *testing.T) {
	b := NewStdBackend()

	assert.Equal(t, "image/png", Sniff(encodePNG(t, 1, 1, color.NRGBA{A: 255})))
	assert.True(t, IsVector(Sniff([]byte(redRect))))

	img, err := Decode(b, []byte(redRect))
	require.NoError(t, err)
	assert.Equal(t, 20, img.Width)

	img, err = Decode(b, encodePNG(t, 2, 2, color.NRGBA{G: 255, A: 255}))
	require.NoError(t, err)
	assert.Equal(t, 2, img.Width)
}

func TestThumbnail(t *testing.T) {
	img := FromImage(image.NewNRGBA(image.Rect(0, 0, 40, 20)))

	th := img.Thumbnail(0.5)
	assert.Equal(t, 20, th.Width)
	assert.Equal(t, 10, th.Height)

	tiny := img.Thumbnail(0.001)
	assert.Equal(t, 1, tiny.Width)
	assert.Equal(t, 1, tiny.Height)

	assert.True(t, img.Thumbnail(0).Empty())
}

func TestFromImage_OffsetBounds(t *testing.T) {
	m := image.NewNRGBA(image.Rect(5, 5, 7, 6))
	m.SetNRGBA(6, 5, color.NRGBA{R: 9, A: 255})

	img := FromImage(m)
	assert.Equal(t, 2, img.Width)
	assert.Equal(t, 1, img.Height)
	assert.Equal(t, uint8(9), img.At(1, 0).R)
}

func TestUploadTexture(t *testing.T) {
	b := NewStdBackend()
	tex := NewTextures()

	img, err := b.DecodeRaster(encodePNG(t, 2, 2, color.NRGBA{R: 1, A: 255}))
	require.NoError(t, err)

	h, err := b.UploadTexture(img, tex)
	require.NoError(t, err)
	assert.NotZero(t, h)
	got, ok := tex.Get(h)
	require.True(t, ok)
	assert.Same(t, img, got)

	_, err = b.UploadTexture(&Image{}, tex)
	assert.ErrorIs(t, err, ErrEmptyImage)

	tex.Free(h)
	assert.Zero(t, tex.Len())
}

func TestLoadRasterAsync(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pic.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, 4, 4, color.NRGBA{A: 255}), 0o600))

	c := NewStdBackend().LoadRasterAsync(path)
	assert.Equal(t, RasterTask, c.ID())

	img, ok := awaitLoad(t, c).Completed()
	require.True(t, ok)
	assert.Equal(t, 4, img.Width)
}

func TestLoadVectorAsync_FS(t *testing.T) {
	b := NewStdBackend()
	b.FS = fstest.MapFS{"icons/rect.svg": {Data: []byte(redRect)}}

	c := b.LoadVectorAsync("icons/rect.svg")
	assert.Equal(t, VectorTask, c.ID())

	img, ok := awaitLoad(t, c).Completed()
	require.True(t, ok)
	assert.Equal(t, 20, img.Width)
}

func TestLoadAsync_MissingFile(t *testing.T) {
	p := awaitLoad(t, NewStdBackend().LoadRasterAsync(filepath.Join(t.TempDir(), "nope.png")))
	assert.Equal(t, futurize.KindError, p.Kind())
	assert.ErrorIs(t, p.Err(), os.ErrNotExist)
}

func TestLoadAsync_CanceledBeforeStart(t *testing.T) {
	c := NewStdBackend().LoadRasterAsync("unused.png")
	c.Cancel()
	assert.Equal(t, futurize.KindCanceled, awaitLoad(t, c).Kind())
}

func TestRegistry(t *testing.T) {
	b, err := Open("std")
	require.NoError(t, err)
	assert.Equal(t, "std", b.Name())

	_, err = Open("vulkan")
	assert.ErrorIs(t, err, ErrUnknownBackend)

	Register("test-std", func(opts ...futurize.Option) Backend { return NewStdBackend(opts...) })
	assert.Contains(t, Backends(), "test-std")
}
