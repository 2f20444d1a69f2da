package imaging

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Sniff returns the MIME type of data, without parameters.
func Sniff(data []byte) string {
	mt := mimetype.Detect(data).String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt
}

// IsVector reports whether the MIME type names an SVG document.
func IsVector(mime string) bool {
	return strings.HasPrefix(mime, "image/svg")
}

// IsImage reports whether the MIME type is an image type.
func IsImage(mime string) bool {
	return strings.HasPrefix(mime, "image/")
}
