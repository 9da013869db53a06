// Package storage holds the object stores used for staff photos: a local
// directory served by the HTTP router, or an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrInvalidKey is returned for keys that are empty or escape the store root.
var ErrInvalidKey = errors.New("invalid object key")

// PhotoStore persists binary objects under a key and reports the public URL
// clients can fetch them from.
type PhotoStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (url string, err error)
	Delete(ctx context.Context, key string) error
}

// cleanKey validates a slash-separated relative key.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	c := path.Clean(key)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", ErrInvalidKey
	}
	return c, nil
}

// joinURL appends key to base with exactly one slash between them.
func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
