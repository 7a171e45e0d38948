package idempotency

import (
	"context"
	"time"

	"github.com/Overland-East-Bay/stockroom/internal/domain"
)

// Key is the caller-provided idempotency key (Idempotency-Key header). The
// inventory client sends its correlation token.
type Key string

// Fingerprint scopes a key to one owner and route. The body hash is stored
// alongside so a reused key with a different body can be refused.
type Fingerprint struct {
	Key    Key
	Owner  domain.OwnerID
	Method string
	Route  string
}

// Record is the stored response replayed for a duplicate request.
type Record struct {
	BodyHash    string
	StatusCode  int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

// Store persists idempotency records for replaying responses on retries.
type Store interface {
	Get(ctx context.Context, fp Fingerprint) (Record, bool, error)
	Put(ctx context.Context, fp Fingerprint, rec Record) error
}
