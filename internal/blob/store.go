package blob

import (
	"context"
	"errors"
	"io"
)

var ErrNotExist = errors.New("blob does not exist")

// Info describes a stored object.
type Info struct {
	Key         string
	ContentType string
	Size        int64
}

// Store is the narrow object-storage port the tier store runs on. Keys are
// opaque slash-separated paths; implementations must be safe for concurrent
// use.
type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (Info, error)
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Stat(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) error
}
