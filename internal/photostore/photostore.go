// Package photostore holds the photos the user submitted for prediction,
// the local counterpart of the phone's media library.
package photostore

import (
	"context"
	"errors"
	"io"
	"net/http"
)

var ErrNotFound = errors.New("photo not found")

type PhotoStore interface {
	Save(ctx context.Context, prefix, mimeType string, r io.Reader) (storageKey string, err error)
	Get(ctx context.Context, storageKey string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, storageKey string) error
}

// imageTypes is the set of MIME types accepted for food photos.
// http.DetectContentType sniffs JPEG, PNG and GIF. WebP needs its own check
// because the stdlib sniffer has no WebP signature.
var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// DetectImageType returns the sniffed MIME type and true for accepted photo
// formats, or ("", false) otherwise.
func DetectImageType(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if imageTypes[mime] {
		return mime, true
	}
	return "", false
}

// isWebP reports whether data is a RIFF container with "WEBP" at offset 8.
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}
