// Package catalogrepo is the Postgres implementation of the product and
// category repositories. Both share one pool and schema; category
// references and delete refusals are enforced by foreign keys.
package catalogrepo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Overland-East-Bay/stockroom/internal/domain"
)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func parseID(id domain.ServerID) (uuid.UUID, bool) {
	u, err := uuid.Parse(string(id))
	return u, err == nil
}

func parseOptionalID(id *domain.ServerID) (*uuid.UUID, error) {
	if id == nil {
		return nil, nil
	}
	u, ok := parseID(*id)
	if !ok {
		return nil, fmt.Errorf("invalid category id %q", string(*id))
	}
	return &u, nil
}

func serverID(u uuid.UUID) domain.ServerID { return domain.ServerID(u.String()) }

func optionalServerID(u *uuid.UUID) *domain.ServerID {
	if u == nil {
		return nil
	}
	id := serverID(*u)
	return &id
}

// excludeArg returns nil for an unparsable id; no row can carry one.
func excludeArg(exclude *domain.ServerID) *uuid.UUID {
	if exclude == nil {
		return nil
	}
	u, ok := parseID(*exclude)
	if !ok {
		return nil
	}
	return &u
}
