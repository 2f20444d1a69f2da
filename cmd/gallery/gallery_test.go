package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caihong2050-art/futurize/fetch"
	"github.com/caihong2050-art/futurize/imaging"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	m.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, m))
	return buf.Bytes()
}

func settle(t *testing.T, src source) {
	t.Helper()
	require.Eventually(t, func() bool { return src.Poll() == 0 }, 5*time.Second, time.Millisecond)
}

func testClient() *fetch.Client {
	cfg := fetch.DefaultConfig()
	cfg.RequestsPerSecond = 0
	return fetch.New(cfg)
}

func TestNetworkSource_PagesAndTextures(t *testing.T) {
	body := pngOf(t, 4, 3)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/1") {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	tex := imaging.NewTextures()
	src := newNetworkSource(testClient(), imaging.NewStdBackend(), tex, 3, 0,
		func(seed int) string { return fmt.Sprintf("%s/seed/%d", srv.URL, seed) }, setupTestLogger())
	defer src.Close()

	assert.Equal(t, []string{"Loading...", "Loading...", "Loading..."}, src.Lines())
	settle(t, src)

	lines := src.Lines()
	assert.Contains(t, lines[0], "image/png")
	assert.Contains(t, lines[0], "4x3 texture #")
	assert.Contains(t, lines[0], "preview 1x1")
	assert.Contains(t, lines[1], "error:")
	assert.Contains(t, lines[2], "/seed/2")
	assert.Equal(t, 2, tex.Len())

	src.Next()
	assert.Zero(t, tex.Len(), "textures of the previous page are freed")
	settle(t, src)
	assert.Contains(t, src.Lines()[0], "/seed/3")
	assert.Equal(t, 3, tex.Len())

	src.Prev()
	settle(t, src)
	assert.Contains(t, src.Lines()[0], "/seed/0")
}

func TestNetworkSource_CancelSlot(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	src := newNetworkSource(testClient(), imaging.NewStdBackend(), imaging.NewTextures(), 2, 0,
		func(seed int) string { return fmt.Sprintf("%s/%d", srv.URL, seed) }, setupTestLogger())
	defer src.Close()

	src.Cancel(1)
	require.Eventually(t, func() bool { return src.Poll() == 1 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, "canceled", src.Lines()[1])
	assert.Equal(t, "Loading...", src.Lines()[0])

	src.CancelAll()
	settle(t, src)
	assert.Equal(t, "canceled", src.Lines()[0])
}

func TestFileSource_LoadAndReload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), pngOf(t, 2, 2), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.svg"),
		[]byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 8 4"><rect width="8" height="4" fill="#00f"/></svg>`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o600))

	tex := imaging.NewTextures()
	src, err := newFileSource(dir, 10, imaging.NewStdBackend(), tex, setupTestLogger())
	require.NoError(t, err)
	defer src.Close()

	settle(t, src)
	lines := src.Lines()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "a.png 2x2")
	assert.Contains(t, lines[1], "b.svg 8x4")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), pngOf(t, 8, 4), 0o600))
	src.Reload(filepath.Join(dir, "a.png"))
	settle(t, src)
	assert.Contains(t, src.Lines()[0], "a.png 8x4")
	assert.Contains(t, src.Lines()[0], "preview 2x1")
	require.NotNil(t, src.previews[0])
	assert.Equal(t, 2, src.previews[0].Width)
	assert.Equal(t, 2, tex.Len())

	c := filepath.Join(dir, "c.png")
	require.NoError(t, os.WriteFile(c, pngOf(t, 1, 1), 0o600))
	src.Reload(c)
	src.Reload(filepath.Join(dir, "notes.txt"))
	settle(t, src)
	require.Len(t, src.Lines(), 3)
	assert.Contains(t, src.Lines()[2], "c.png 1x1")
}

func TestFileSource_MissingDir(t *testing.T) {
	_, err := newFileSource(filepath.Join(t.TempDir(), "nope"), 10, imaging.NewStdBackend(), imaging.NewTextures(), setupTestLogger())
	assert.Error(t, err)
}

type stubSource struct {
	slots
	active   int
	canceled []int
	all      bool
	nexts    int
}

func (s *stubSource) Poll() int {
	if s.all {
		s.active = 0
	}
	return s.active
}
func (s *stubSource) Cancel(i int) { s.canceled = append(s.canceled, i) }
func (s *stubSource) CancelAll()   { s.all = true }
func (s *stubSource) Close()       {}
func (s *stubSource) Next()        { s.nexts++ }
func (s *stubSource) Prev()        {}

func TestLoop_CommandsAndQuit(t *testing.T) {
	src := &stubSource{slots: newSlots(1, imaging.NewTextures()), active: 1}
	src.lines[0] = "Loading..."
	var out bytes.Buffer

	l := &galleryLoop{
		src:      src,
		out:      &out,
		interval: time.Millisecond,
		commands: readCommands(strings.NewReader("n\nc 0\nbogus\nq\n")),
		logger:   setupTestLogger(),
	}
	l.run(context.Background())

	assert.Equal(t, 1, src.nexts)
	assert.Equal(t, []int{0}, src.canceled)
	assert.True(t, src.all)
	assert.Equal(t, "[ 0] Loading...\n", out.String(), "unchanged lines are printed once")
}

func TestLoop_InterruptCancels(t *testing.T) {
	src := &stubSource{slots: newSlots(0, imaging.NewTextures()), active: 2}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := &galleryLoop{src: src, out: &bytes.Buffer{}, interval: time.Millisecond, logger: setupTestLogger()}
	l.run(ctx)
	assert.True(t, src.all)
}

func TestRun_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "only.png"), pngOf(t, 3, 3), 0o600))
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil))) })

	var out bytes.Buffer
	err := run([]string{"--dir", dir, "--executor", "pool", "--workers", "2", "--log-level", "error"}, strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "only.png 3x3 texture #1")
}
