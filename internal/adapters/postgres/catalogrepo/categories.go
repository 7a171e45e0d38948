package catalogrepo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/Overland-East-Bay/stockroom/internal/adapters/postgres"
	"github.com/Overland-East-Bay/stockroom/internal/domain"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/categoryrepo"
)

// CategoryRepo is a Postgres implementation of categoryrepo.Repository.
type CategoryRepo struct {
	pool *pgxpool.Pool
}

var _ categoryrepo.Repository = (*CategoryRepo)(nil)

func NewCategoryRepo(pool *pgxpool.Pool) *CategoryRepo {
	return &CategoryRepo{pool: pool}
}

const categoryColumns = `
	c.id,
	c.owner,
	c.name,
	c.name_key,
	c.description,
	(SELECT count(*) FROM products p WHERE p.owner = c.owner AND p.category_id = c.id),
	c.created_at,
	c.updated_at
`

func (r *CategoryRepo) Create(ctx context.Context, c categoryrepo.Category) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, ok := parseID(c.ID)
	if !ok {
		return errors.New("invalid category id")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO categories (
			id,
			owner,
			name,
			name_key,
			description,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		id,
		string(c.Owner),
		c.Name,
		c.NameKey,
		c.Description,
		c.CreatedAt.UTC(),
		c.UpdatedAt.UTC(),
	)
	return mapCategoryWriteErr(err)
}

func (r *CategoryRepo) Update(ctx context.Context, c categoryrepo.Category) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, ok := parseID(c.ID)
	if !ok {
		return categoryrepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE categories
		SET name = $3,
		    name_key = $4,
		    description = $5,
		    updated_at = $6
		WHERE owner = $1 AND id = $2
	`,
		string(c.Owner),
		id,
		c.Name,
		c.NameKey,
		c.Description,
		c.UpdatedAt.UTC(),
	)
	if err != nil {
		return mapCategoryWriteErr(err)
	}
	if ct.RowsAffected() == 0 {
		return categoryrepo.ErrNotFound
	}
	return nil
}

func (r *CategoryRepo) Delete(ctx context.Context, owner domain.OwnerID, id domain.ServerID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	uid, ok := parseID(id)
	if !ok {
		return categoryrepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE owner = $1 AND id = $2`, string(owner), uid)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.ForeignKeyViolationCode {
			return categoryrepo.ErrHasProducts
		}
		return err
	}
	if ct.RowsAffected() == 0 {
		return categoryrepo.ErrNotFound
	}
	return nil
}

func (r *CategoryRepo) Get(ctx context.Context, owner domain.OwnerID, id domain.ServerID) (categoryrepo.Category, error) {
	if r.pool == nil {
		return categoryrepo.Category{}, errors.New("nil postgres pool")
	}
	uid, ok := parseID(id)
	if !ok {
		return categoryrepo.Category{}, categoryrepo.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+categoryColumns+`
		FROM categories c
		WHERE c.owner = $1 AND c.id = $2
	`, string(owner), uid)
	return scanCategory(row)
}

func (r *CategoryRepo) List(ctx context.Context, owner domain.OwnerID, offset, limit int) ([]categoryrepo.Category, int, error) {
	if r.pool == nil {
		return nil, 0, errors.New("nil postgres pool")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM categories WHERE owner = $1`, string(owner)).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+categoryColumns+`
		FROM categories c
		WHERE c.owner = $1
		ORDER BY c.name_key ASC, c.id ASC
		OFFSET $2 LIMIT $3
	`, string(owner), offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]categoryrepo.Category, 0, limit)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *CategoryRepo) NameTaken(ctx context.Context, owner domain.OwnerID, nameKey string, exclude *domain.ServerID) (bool, error) {
	if r.pool == nil {
		return false, errors.New("nil postgres pool")
	}
	ex := excludeArg(exclude)
	var taken bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM categories
			WHERE owner = $1 AND name_key = $2 AND ($3::uuid IS NULL OR id <> $3)
		)
	`, string(owner), nameKey, ex).Scan(&taken)
	return taken, err
}

func scanCategory(row rowScanner) (categoryrepo.Category, error) {
	var (
		id          uuid.UUID
		owner       string
		name        string
		nameKey     string
		description *string
		count       int
		createdAt   time.Time
		updatedAt   time.Time
	)
	if err := row.Scan(&id, &owner, &name, &nameKey, &description, &count, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return categoryrepo.Category{}, categoryrepo.ErrNotFound
		}
		return categoryrepo.Category{}, err
	}
	return categoryrepo.Category{
		ID:           serverID(id),
		Owner:        domain.OwnerID(owner),
		Name:         name,
		NameKey:      nameKey,
		Description:  description,
		ProductCount: count,
		CreatedAt:    createdAt.UTC(),
		UpdatedAt:    updatedAt.UTC(),
	}, nil
}

func mapCategoryWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode && pe.ConstraintName == "categories_owner_name_unique" {
		return categoryrepo.ErrNameTaken
	}
	return err
}
