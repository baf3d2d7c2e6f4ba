// Package storage persists export artifacts: one file per succeeded task,
// addressed by the task's artifact path.
package storage

import "io"

type BlobStore interface {
	// Put writes the artifact and returns the canonical key plus bytes written.
	Put(key string, r io.Reader) (string, int64, error)
	Get(key string) (io.ReadCloser, error)
	// URL returns a fetchable location; the FS store answers "file://..." for dev.
	URL(key string) (string, error)
}
