package storage

import (
	"errors"
	"io"
)

var ErrNotFound = errors.New("blob not found")

// BlobStore holds exported package zips.
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	Delete(key string) error
	SignedURL(key string) (string, error) // fs returns "file://..." for dev
}

// PackageKey is where the zip of a package lives.
func PackageKey(packageID string) string { return "packages/" + packageID + ".zip" }
