package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/caihong2050-art/futurize/fetch"
	"github.com/caihong2050-art/futurize/futurize"
	"github.com/caihong2050-art/futurize/imaging"
)

// source is one gallery page: a fixed set of slots, each backed by at most
// one in-flight controller.
type source interface {
	// Poll drains every controller once and returns how many are still in
	// flight.
	Poll() int
	Lines() []string
	Cancel(i int)
	CancelAll()
	Close()
}

// pager is implemented by sources that can move to another page.
type pager interface {
	Next()
	Prev()
}

// reloader is implemented by sources backed by files.
type reloader interface {
	Reload(path string)
}

// previewScale sizes the thumbnail kept next to each full texture.
const previewScale = 0.25

// slots holds the per-record display state shared by both sources.
type slots struct {
	lines    []string
	textures []imaging.TextureHandle
	previews []*imaging.Image
	tex      *imaging.Textures
}

func newSlots(n int, tex *imaging.Textures) slots {
	return slots{
		lines:    make([]string, n),
		textures: make([]imaging.TextureHandle, n),
		previews: make([]*imaging.Image, n),
		tex:      tex,
	}
}

func (s *slots) Lines() []string { return slices.Clone(s.lines) }

func (s *slots) grow() int {
	s.lines = append(s.lines, "")
	s.textures = append(s.textures, 0)
	s.previews = append(s.previews, nil)
	return len(s.lines) - 1
}

func (s *slots) release(i int) {
	if s.textures[i] != 0 {
		s.tex.Free(s.textures[i])
		s.textures[i] = 0
	}
	s.previews[i] = nil
}

func (s *slots) releaseAll() {
	for i := range s.textures {
		s.release(i)
	}
}

// show uploads img into slot i, keeps its preview, and returns the status
// suffix for the slot.
func (s *slots) show(b imaging.Backend, i int, img *imaging.Image) (string, error) {
	s.release(i)
	h, err := b.UploadTexture(img, s.tex)
	if err != nil {
		return "", err
	}
	s.textures[i] = h
	s.previews[i] = img.Thumbnail(previewScale)
	return fmt.Sprintf("%dx%d texture #%d preview %dx%d",
		img.Width, img.Height, h, s.previews[i].Width, s.previews[i].Height), nil
}

func outcomeLine[P, D any](p futurize.Progress[P, D]) (string, bool) {
	switch p.Kind() {
	case futurize.KindError:
		return "error: " + p.Err().Error(), true
	case futurize.KindCanceled:
		return "canceled", true
	}
	return "", false
}

// networkSource downloads a page of seeded images.
type networkSource struct {
	slots
	client  *fetch.Client
	backend imaging.Backend
	urlFor  func(seed int) string
	logger  *slog.Logger

	seed  int
	group *futurize.Group[fetch.Transfer, *fetch.Result]
}

func newNetworkSource(client *fetch.Client, backend imaging.Backend, tex *imaging.Textures, n, seed int, urlFor func(int) string, logger *slog.Logger) *networkSource {
	s := &networkSource{
		slots:   newSlots(n, tex),
		client:  client,
		backend: backend,
		urlFor:  urlFor,
		logger:  logger,
	}
	s.load(seed)
	return s
}

func (s *networkSource) load(seed int) {
	if s.group != nil {
		s.group.Close()
	}
	s.releaseAll()
	s.seed = seed
	s.group = futurize.NewGroup[fetch.Transfer, *fetch.Result](len(s.lines))
	for i := range s.lines {
		s.group.Set(i, s.client.Image(s.urlFor(seed+i)))
		s.lines[i] = "Loading..."
	}
	s.group.TryDoAll()
	s.logger.Info("page loading", "seed", seed, "images", len(s.lines))
}

func (s *networkSource) Next() { s.load(s.seed + len(s.lines)) }

func (s *networkSource) Prev() { s.load(max(s.seed-len(s.lines), 0)) }

func (s *networkSource) Poll() int {
	s.group.PollAll(func(i int, c *futurize.Controller[fetch.Transfer, *fetch.Result], p futurize.Progress[fetch.Transfer, *fetch.Result]) {
		if t, ok := p.Current(); ok {
			s.lines[i] = "Loading... " + transferText(t)
			return
		}
		if line, ok := outcomeLine(p); ok {
			s.lines[i] = line
			return
		}
		res, ok := p.Completed()
		if !ok {
			return
		}
		s.lines[i] = s.present(i, res)
	})
	return s.group.Active()
}

func (s *networkSource) present(i int, res *fetch.Result) string {
	head := fmt.Sprintf("%s (%s, %s)", res.URL, res.ContentType, byteSize(int64(len(res.Body))))
	if !imaging.IsImage(res.ContentType) {
		return head + " not an image"
	}
	img, err := imaging.Decode(s.backend, res.Body)
	if err != nil {
		s.logger.Warn("decode failed", "url", res.URL, "error", err)
		return head + " error: " + err.Error()
	}
	shown, err := s.show(s.backend, i, img)
	if err != nil {
		return head + " error: " + err.Error()
	}
	return head + " " + shown
}

func (s *networkSource) Cancel(i int) {
	if c := s.group.Get(i); c != nil {
		c.Cancel()
	}
}

func (s *networkSource) CancelAll() { s.group.CancelAll() }

func (s *networkSource) Close() {
	s.group.Close()
	s.releaseAll()
}

// fileSource loads the images found in a directory.
type fileSource struct {
	slots
	backend imaging.Backend
	logger  *slog.Logger

	paths []string
	group *futurize.Group[imaging.Stage, *imaging.Image]
}

var imageExts = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp", ".svg"}

func isImageFile(path string) bool {
	return slices.Contains(imageExts, strings.ToLower(filepath.Ext(path)))
}

func newFileSource(dir string, limit int, backend imaging.Backend, tex *imaging.Textures, logger *slog.Logger) (*fileSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("gallery: list %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && isImageFile(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) > limit {
		paths = paths[:limit]
	}

	s := &fileSource{
		slots:   newSlots(len(paths), tex),
		backend: backend,
		logger:  logger,
		paths:   paths,
		group:   futurize.NewGroup[imaging.Stage, *imaging.Image](len(paths)),
	}
	for i := range paths {
		s.start(i)
	}
	logger.Info("directory loading", "dir", dir, "images", len(paths))
	return s, nil
}

func (s *fileSource) open(path string) *futurize.Controller[imaging.Stage, *imaging.Image] {
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		return s.backend.LoadVectorAsync(path)
	}
	return s.backend.LoadRasterAsync(path)
}

func (s *fileSource) start(i int) {
	c := s.open(s.paths[i])
	s.group.Set(i, c)
	s.lines[i] = "Loading..."
	c.TryDo()
}

// Reload restarts the slot showing path, or appends a slot for a new file.
func (s *fileSource) Reload(path string) {
	if !isImageFile(path) {
		return
	}
	i := slices.Index(s.paths, path)
	if i < 0 {
		s.paths = append(s.paths, path)
		i = s.grow()
		s.group.Resize(len(s.paths))
	}
	s.logger.Debug("reloading", "path", path, "slot", i)
	s.start(i)
}

func (s *fileSource) Poll() int {
	s.group.PollAll(func(i int, c *futurize.Controller[imaging.Stage, *imaging.Image], p futurize.Progress[imaging.Stage, *imaging.Image]) {
		if st, ok := p.Current(); ok {
			s.lines[i] = "Loading... " + st.String()
			return
		}
		if line, ok := outcomeLine(p); ok {
			s.lines[i] = line
			return
		}
		img, ok := p.Completed()
		if !ok {
			return
		}
		shown, err := s.show(s.backend, i, img)
		if err != nil {
			s.lines[i] = "error: " + err.Error()
			return
		}
		s.lines[i] = filepath.Base(s.paths[i]) + " " + shown
	})
	return s.group.Active()
}

func (s *fileSource) Cancel(i int) {
	if c := s.group.Get(i); c != nil {
		c.Cancel()
	}
}

func (s *fileSource) CancelAll() { s.group.CancelAll() }

func (s *fileSource) Close() {
	s.group.Close()
	s.releaseAll()
}

func transferText(t fetch.Transfer) string {
	if f, ok := t.Fraction(); ok {
		return fmt.Sprintf("%d%%", int(f*100))
	}
	return byteSize(t.Read)
}

func byteSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
