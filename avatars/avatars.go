// Package avatars validates uploaded avatar images and hands them to an
// object store (local disk or S3).
package avatars

import (
	"context"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/user/accountd/apperror"
)

// KeyPrefix is the object key prefix for avatars.
const KeyPrefix = "avatars/"

// allowedTypes maps accepted MIME types to the extension used for storage.
var allowedTypes = []struct {
	mime string
	ext  string
}{
	{"image/jpeg", ".jpg"},
	{"image/png", ".png"},
	{"image/webp", ".webp"},
}

// Store persists an object and returns its public URL or path.
type Store interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// Uploader enforces the size ceiling and the type whitelist before storing.
type Uploader struct {
	store    Store
	maxBytes int64
	newName  func() string
}

// NewUploader creates an Uploader that accepts files up to maxBytes.
func NewUploader(store Store, maxBytes int64) *Uploader {
	return &Uploader{
		store:    store,
		maxBytes: maxBytes,
		newName: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}
}

// MaxBytes returns the configured size ceiling.
func (u *Uploader) MaxBytes() int64 {
	return u.maxBytes
}

// Save reads the image from r, checks its size and sniffed content type, and
// stores it under a random name. It returns the public URL of the stored file.
func (u *Uploader) Save(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, u.maxBytes+1))
	if err != nil {
		return "", apperror.NewBadRequestError("failed to read upload", err)
	}
	if int64(len(data)) > u.maxBytes {
		return "", apperror.NewPayloadTooLargeError("file too large", nil)
	}
	if len(data) == 0 {
		return "", apperror.NewBadRequestError("missing file", nil)
	}

	detected := mimetype.Detect(data)
	contentType, ext, ok := allowed(detected)
	if !ok {
		return "", apperror.NewUnsupportedMediaError("unsupported file type", nil)
	}

	url, err := u.store.Put(ctx, KeyPrefix+u.newName()+ext, contentType, data)
	if err != nil {
		return "", apperror.NewExternalServiceError("failed to store avatar", err)
	}
	return url, nil
}

func allowed(detected *mimetype.MIME) (string, string, bool) {
	for _, t := range allowedTypes {
		if detected.Is(t.mime) {
			return t.mime, t.ext, true
		}
	}
	return "", "", false
}
