package uploads

import (
	"context"
	"time"
)

// WritePermission grants a client time-limited access to write a single
// object into the store. The URL embeds a signed token scoped to the
// bucket, key and method; no store credentials ever reach the client.
type WritePermission struct {
	URL       string
	Method    string
	Headers   map[string]string
	ExpiresAt time.Time
}

// StorageSigner mints write permissions against the object store.
type StorageSigner interface {
	// SignUpload creates a write permission for the given object. The
	// declared content type is bound into the permission so clients cannot
	// swap payloads after issuance.
	SignUpload(ctx context.Context, bucket, objectKey, contentType string, ttl time.Duration) (WritePermission, error)
}
