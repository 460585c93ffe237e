package objectstore

import (
	"context"
	"errors"
)

// ErrExists indicates an object already exists at the path and Upsert was false.
var ErrExists = errors.New("object already exists")

// Object is a blob to store at Path.
type Object struct {
	Path         string
	ContentType  string
	CacheControl string
	Upsert       bool
	Body         []byte
}

// Store puts blobs and returns a locator (the stored path).
type Store interface {
	Put(ctx context.Context, o Object) (string, error)
}
