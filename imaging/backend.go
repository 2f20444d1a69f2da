package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"slices"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/caihong2050-art/futurize/futurize"
)

// Kind tags of the controllers returned by the async loaders.
const (
	RasterTask = 0
	VectorTask = 1
)

// DefaultVectorSize is the side length used when an SVG has no usable
// viewBox.
const DefaultVectorSize = 512

// ErrDecode wraps every decoder failure.
var ErrDecode = errors.New("imaging: decode")

// Stage is the progress value of a file load.
type Stage uint8

const (
	StageReading Stage = iota
	StageDecoding
)

func (s Stage) String() string {
	switch s {
	case StageReading:
		return "reading"
	case StageDecoding:
		return "decoding"
	default:
		return fmt.Sprintf("Stage(%d)", s)
	}
}

// Backend decodes images and uploads them as textures.
//
// The async loaders return controllers that have not been started; the
// caller triggers them with TryDo and polls them like any other task.
type Backend interface {
	Name() string
	DecodeRaster(data []byte) (*Image, error)
	DecodeVector(data []byte) (*Image, error)
	UploadTexture(img *Image, tex TextureAllocator) (TextureHandle, error)
	LoadRasterAsync(path string) *futurize.Controller[Stage, *Image]
	LoadVectorAsync(path string) *futurize.Controller[Stage, *Image]
}

// StdBackend decodes rasters with the image package and x/image codecs, and
// rasterizes SVG with oksvg.
type StdBackend struct {
	// FS is read by the async loaders. Nil means the OS file system.
	FS fs.FS
	// VectorSize bounds the longer side of a rasterized SVG.
	VectorSize int

	opts []futurize.Option
}

// NewStdBackend returns a StdBackend whose controllers are built with opts.
func NewStdBackend(opts ...futurize.Option) *StdBackend {
	return &StdBackend{VectorSize: DefaultVectorSize, opts: opts}
}

// Name implements Backend.
func (b *StdBackend) Name() string { return "std" }

// DecodeRaster implements Backend.
func (b *StdBackend) DecodeRaster(data []byte) (*Image, error) {
	m, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	img := FromImage(m)
	if img.Empty() {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, format, ErrEmptyImage)
	}
	return img, nil
}

// DecodeVector implements Backend.
func (b *StdBackend) DecodeVector(data []byte) (img *Image, err error) {
	// oksvg panics on some malformed path data.
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("%w: svg: %v", ErrDecode, r)
		}
	}()

	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.WarnErrorMode)
	if err != nil {
		return nil, fmt.Errorf("%w: svg: %w", ErrDecode, err)
	}
	w, h := b.vectorBounds(icon.ViewBox.W, icon.ViewBox.H)

	icon.SetTarget(0, 0, float64(w), float64(h))
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)
	return FromImage(rgba), nil
}

func (b *StdBackend) vectorBounds(vw, vh float64) (int, int) {
	limit := b.VectorSize
	if limit <= 0 {
		limit = DefaultVectorSize
	}
	if vw <= 0 || vh <= 0 {
		return limit, limit
	}
	scale := 1.0
	if longest := max(vw, vh); longest > float64(limit) {
		scale = float64(limit) / longest
	}
	return max(int(vw*scale), 1), max(int(vh*scale), 1)
}

// UploadTexture implements Backend.
func (b *StdBackend) UploadTexture(img *Image, tex TextureAllocator) (TextureHandle, error) {
	if img.Empty() {
		return 0, ErrEmptyImage
	}
	return tex.Alloc(img)
}

// LoadRasterAsync implements Backend.
func (b *StdBackend) LoadRasterAsync(path string) *futurize.Controller[Stage, *Image] {
	return b.load(RasterTask, path, b.DecodeRaster)
}

// LoadVectorAsync implements Backend.
func (b *StdBackend) LoadVectorAsync(path string) *futurize.Controller[Stage, *Image] {
	return b.load(VectorTask, path, b.DecodeVector)
}

func (b *StdBackend) load(id int, path string, decode func([]byte) (*Image, error)) *futurize.Controller[Stage, *Image] {
	opts := slices.Concat(b.opts, []futurize.Option{futurize.WithName(path)})
	return futurize.Task(id, func(h *futurize.TaskHandle[Stage, *Image]) futurize.Progress[Stage, *Image] {
		h.Report(StageReading)
		data, err := b.readFile(path)
		if err != nil {
			return h.Failf("imaging: read %s: %w", path, err)
		}
		if h.IsCanceled() {
			return h.Cancelled()
		}

		h.Report(StageDecoding)
		img, err := decode(data)
		if err != nil {
			return h.Failf("imaging: load %s: %w", path, err)
		}
		return h.Complete(img)
	}, opts...)
}

func (b *StdBackend) readFile(path string) ([]byte, error) {
	if b.FS != nil {
		return fs.ReadFile(b.FS, path)
	}
	return os.ReadFile(path)
}

// Decode picks the vector or raster decoder of b from the sniffed content.
func Decode(b Backend, data []byte) (*Image, error) {
	if IsVector(Sniff(data)) {
		return b.DecodeVector(data)
	}
	return b.DecodeRaster(data)
}

var _ Backend = (*StdBackend)(nil)
