package imaging

import (
	"fmt"
	"sync"
)

// TextureHandle identifies an uploaded image in a TextureAllocator.
type TextureHandle uint64

// TextureAllocator is the rendering side's texture store, usually owned by
// the UI frame.
type TextureAllocator interface {
	Alloc(img *Image) (TextureHandle, error)
	Free(h TextureHandle)
}

// Textures is an in-memory TextureAllocator. Handles start at 1, so the
// zero handle never names a texture.
type Textures struct {
	mu   sync.Mutex
	next TextureHandle
	live map[TextureHandle]*Image
}

// NewTextures creates an empty allocator.
func NewTextures() *Textures {
	return &Textures{live: make(map[TextureHandle]*Image)}
}

// Alloc implements TextureAllocator.
func (t *Textures) Alloc(img *Image) (TextureHandle, error) {
	if img.Empty() {
		return 0, fmt.Errorf("imaging: alloc texture: %w", ErrEmptyImage)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.live[t.next] = img
	return t.next, nil
}

// Free implements TextureAllocator. Freeing an unknown handle is a no-op.
func (t *Textures) Free(h TextureHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.live, h)
}

// Get returns the image behind h.
func (t *Textures) Get(h TextureHandle) (*Image, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	img, ok := t.live[h]
	return img, ok
}

// Len returns the number of live textures.
func (t *Textures) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}
