package optimistic

import (
	"context"
	"time"

	"github.com/Overland-East-Bay/stockroom/internal/domain"
)

// Resource describes how one entity kind is projected optimistically.
// E is the entity, C its coerced create fields and P its coerced update diff.
type Resource[E, C, P any] interface {
	Kind() domain.ResourceKind
	IDOf(e E) domain.EntityID
	// Placeholder builds the optimistic entity shown until the server confirms.
	Placeholder(id domain.PendingID, fields C, now time.Time) E
	// Apply returns the projection of changes onto an entity. It is called before
	// the cache is written and may read it; the returned func runs while the cache
	// is locked, so it must not touch the cache and must not mutate its argument.
	Apply(changes P) func(e E) E
	SetUpdating(e E, on bool) E
}

// Remote submits mutations to the server.
type Remote[E, C, P any] interface {
	Create(ctx context.Context, token domain.CorrelationToken, fields C) (E, error)
	Update(ctx context.Context, id domain.ServerID, changes P) (E, error)
	Delete(ctx context.Context, id domain.ServerID) error
}
