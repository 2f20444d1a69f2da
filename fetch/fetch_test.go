package fetch

import (
	"bytes"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caihong2050-art/futurize/futurize"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RequestsPerSecond = 0
	cfg.Timeout = 5 * time.Second
	return cfg
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func await(t *testing.T, c *futurize.Controller[Transfer, *Result]) futurize.Progress[Transfer, *Result] {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("download did not finish")
	}
	return c.TryGet()
}

func TestImage_Completed(t *testing.T) {
	body := pngBytes(t)
	var agent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.UserAgent())
		w.Header().Set("Content-Type", "image/png; charset=binary")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	c := New(testConfig()).Image(srv.URL + "/a.png")
	assert.Equal(t, NetworkTask, c.ID())
	c.TryDo()

	res, ok := await(t, c).Completed()
	require.True(t, ok)
	assert.Equal(t, srv.URL+"/a.png", res.URL)
	assert.Equal(t, "image/png", res.ContentType)
	assert.Equal(t, body, res.Body)
	assert.Equal(t, "futurize-gallery/1.0", agent.Load())
}

func TestImage_SniffsMissingContentType(t *testing.T) {
	body := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	c := New(testConfig()).Image(srv.URL)
	c.TryDo()

	res, ok := await(t, c).Completed()
	require.True(t, ok)
	assert.Equal(t, "image/png", res.ContentType)
}

func TestImage_NotFoundIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(testConfig()).Image(srv.URL)
	c.TryDo()

	p := await(t, c)
	var se *StatusError
	require.ErrorAs(t, p.Err(), &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, int32(1), hits.Load())
}

func TestImage_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("<svg xmlns=\"http://www.w3.org/2000/svg\"></svg>"))
	}))
	defer srv.Close()

	c := New(testConfig()).Image(srv.URL)
	c.TryDo()

	res, ok := await(t, c).Completed()
	require.True(t, ok)
	assert.Equal(t, int32(2), hits.Load())
	assert.NotEmpty(t, res.Body)
}

func TestImage_CancelWhileStreaming(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		_, _ = w.Write(make([]byte, 10))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(testConfig()).Image(srv.URL)
	c.TryDo()

	var seen Transfer
	require.Eventually(t, func() bool {
		cur, ok := c.TryGet().Current()
		if ok {
			seen = cur
		}
		return ok && cur.Read == 10
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, int64(100), seen.Total)
	f, ok := seen.Fraction()
	assert.True(t, ok)
	assert.InDelta(t, 0.1, f, 0.001)

	c.Cancel()
	assert.Equal(t, futurize.KindCanceled, await(t, c).Kind())
}

func TestImage_CancelWhileRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.RequestsPerSecond = 0.001
	cfg.Burst = 1
	client := New(cfg)

	first := client.Image(srv.URL)
	first.TryDo()
	assert.Equal(t, futurize.KindCompleted, await(t, first).Kind())

	second := client.Image(srv.URL)
	second.TryDo()
	second.Cancel()
	assert.Equal(t, futurize.KindCanceled, await(t, second).Kind())
}

func TestImage_HugeDeclaredLengthFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "35184372088832")
		_, _ = w.Write([]byte("tiny"))
	}))
	defer srv.Close()

	c := New(testConfig()).Image(srv.URL)
	c.TryDo()

	p := await(t, c)
	assert.Equal(t, futurize.KindError, p.Kind())
	assert.ErrorIs(t, p.Err(), ErrTooLarge)
}

func TestImage_BodyOverLimitFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for range 4 {
			_, _ = w.Write(make([]byte, 1024))
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxBytes = 2048
	c := New(cfg).Image(srv.URL)
	c.TryDo()

	p := await(t, c)
	assert.ErrorIs(t, p.Err(), ErrTooLarge)
}

func TestPicsumURL(t *testing.T) {
	assert.Equal(t, "https://picsum.photos/seed/7/640/480", PicsumURL(7, 640, 480))
}

func TestTransfer_UnknownTotal(t *testing.T) {
	_, ok := Transfer{Read: 5, Total: -1}.Fraction()
	assert.False(t, ok)
}
