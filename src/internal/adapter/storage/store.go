package storage

import "context"

// ObjectStore persists receipt artifacts. Put never overwrites: an existing
// key yields domain.ErrObjectExists.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	URL(key string) string
}
