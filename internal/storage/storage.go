// Package storage persists X12 documents on the local filesystem or in
// an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("document not found")

// Store loads and saves document content by path
type Store interface {
	// Load returns the content at path, or ErrNotFound
	Load(ctx context.Context, path string) (string, error)
	// Save writes content to path, replacing anything already there
	Save(ctx context.Context, content string, path string) error
	// Exists reports whether path holds a document
	Exists(ctx context.Context, path string) (bool, error)
	// Backup copies the document at path aside and returns the backup
	// location
	Backup(ctx context.Context, path string) (string, error)
}

const backupTimeFormat = "20060102150405"

// backupName returns the name a backup of name taken at now gets
func backupName(name string, now time.Time) string {
	return name + "." + now.UTC().Format(backupTimeFormat) + ".bak"
}
