// Package imagecheck validates uploaded images before they reach the label
// detection provider.
package imagecheck

import (
	"bytes"
	"mime"
	"strings"

	"github.com/heritagelens/vision-relay/internal/apperr"
)

// MaxUploadSize bounds the declared size of a single upload.
const MaxUploadSize = 5 << 20

// Format is an accepted image container.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	WebP Format = "webp"
)

var signatures = []struct {
	format Format
	magic  []byte
}{
	{JPEG, []byte{0xFF, 0xD8}},
	{PNG, []byte{0x89, 0x50, 0x4E, 0x47}},
	{WebP, []byte{0x52, 0x49, 0x46, 0x46}},
}

var allowedContentTypes = map[string]Format{
	"image/jpeg": JPEG,
	"image/png":  PNG,
	"image/webp": WebP,
}

var (
	errUnsupported = apperr.New(apperr.UnsupportedMediaType, "Only JPEG, PNG and WebP images are supported").WithDetail(apperr.UnexpectedHint)
	errTooLarge    = apperr.New(apperr.PayloadTooLarge, "File too large").WithDetail(apperr.UnexpectedHint)
	errEmpty       = apperr.New(apperr.InvalidImage, "Invalid image buffer")
	errSignature   = apperr.New(apperr.InvalidImage, "Invalid image format or corrupted file").WithDetail(apperr.RetryHint)
)

// AllowedContentType reports whether the declared MIME type is accepted.
// Media type parameters are ignored.
func AllowedContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(contentType))
	if err != nil {
		return false
	}
	_, ok := allowedContentTypes[mediaType]
	return ok
}

// DetectFormat sniffs the leading signature bytes.
func DetectFormat(data []byte) (Format, bool) {
	for _, sig := range signatures {
		if bytes.HasPrefix(data, sig.magic) {
			return sig.format, true
		}
	}
	return "", false
}

// CheckContentType validates the declared MIME type of an upload part. It
// must run before the part body is read.
func CheckContentType(contentType string) error {
	if !AllowedContentType(contentType) {
		return errUnsupported
	}
	return nil
}

// CheckSize rejects uploads larger than MaxUploadSize.
func CheckSize(size int64) error {
	if size > MaxUploadSize {
		return errTooLarge
	}
	return nil
}

// CheckHeader validates the declared metadata of an upload, type first.
func CheckHeader(contentType string, size int64) error {
	if err := CheckContentType(contentType); err != nil {
		return err
	}
	return CheckSize(size)
}

// CheckContent validates the uploaded bytes, independent of the declared type.
func CheckContent(data []byte) error {
	if len(data) == 0 {
		return errEmpty
	}
	if _, ok := DetectFormat(data); !ok {
		return errSignature
	}
	return nil
}

// TooLarge is the error reported when the request body exceeds the limit
// before the multipart form can be parsed.
func TooLarge(cause error) error {
	return errTooLarge.Wrap(cause)
}
