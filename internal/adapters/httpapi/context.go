package httpapi

import (
	"context"

	"github.com/Overland-East-Bay/stockroom/internal/domain"
)

type ownerKey struct{}

func WithOwner(ctx context.Context, owner domain.OwnerID) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

func OwnerFromContext(ctx context.Context) (domain.OwnerID, bool) {
	v, ok := ctx.Value(ownerKey{}).(domain.OwnerID)
	return v, ok && v != ""
}
