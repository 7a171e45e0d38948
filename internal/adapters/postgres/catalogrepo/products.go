package catalogrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	postgres "github.com/Overland-East-Bay/stockroom/internal/adapters/postgres"
	"github.com/Overland-East-Bay/stockroom/internal/domain"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/productrepo"
)

// ProductRepo is a Postgres implementation of productrepo.Repository.
type ProductRepo struct {
	pool *pgxpool.Pool
}

var _ productrepo.Repository = (*ProductRepo)(nil)

func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

const productColumns = `
	p.id,
	p.owner,
	p.name,
	p.name_key,
	p.description,
	p.price,
	p.stock,
	p.unit,
	p.category_id,
	c.name,
	p.created_at,
	p.updated_at
`

const productFrom = `
	FROM products p
	LEFT JOIN categories c ON c.owner = p.owner AND c.id = p.category_id
`

func (r *ProductRepo) Create(ctx context.Context, p productrepo.Product) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, ok := parseID(p.ID)
	if !ok {
		return fmt.Errorf("invalid product id %q", string(p.ID))
	}
	categoryID, err := parseOptionalID(p.CategoryID)
	if err != nil {
		return productrepo.ErrCategoryNotFound
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO products (
			id,
			owner,
			name,
			name_key,
			description,
			price,
			stock,
			unit,
			category_id,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		id,
		string(p.Owner),
		p.Name,
		p.NameKey,
		p.Description,
		p.Price,
		p.Stock,
		p.Unit,
		categoryID,
		p.CreatedAt.UTC(),
		p.UpdatedAt.UTC(),
	)
	return mapProductWriteErr(err)
}

func (r *ProductRepo) Update(ctx context.Context, p productrepo.Product) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, ok := parseID(p.ID)
	if !ok {
		return productrepo.ErrNotFound
	}
	categoryID, err := parseOptionalID(p.CategoryID)
	if err != nil {
		return productrepo.ErrCategoryNotFound
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE products
		SET name = $3,
		    name_key = $4,
		    description = $5,
		    price = $6,
		    stock = $7,
		    unit = $8,
		    category_id = $9,
		    updated_at = $10
		WHERE owner = $1 AND id = $2
	`,
		string(p.Owner),
		id,
		p.Name,
		p.NameKey,
		p.Description,
		p.Price,
		p.Stock,
		p.Unit,
		categoryID,
		p.UpdatedAt.UTC(),
	)
	if err != nil {
		return mapProductWriteErr(err)
	}
	if ct.RowsAffected() == 0 {
		return productrepo.ErrNotFound
	}
	return nil
}

func (r *ProductRepo) Delete(ctx context.Context, owner domain.OwnerID, id domain.ServerID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	uid, ok := parseID(id)
	if !ok {
		return productrepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `DELETE FROM products WHERE owner = $1 AND id = $2`, string(owner), uid)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.ForeignKeyViolationCode {
			return productrepo.ErrHasSales
		}
		return err
	}
	if ct.RowsAffected() == 0 {
		return productrepo.ErrNotFound
	}
	return nil
}

func (r *ProductRepo) Get(ctx context.Context, owner domain.OwnerID, id domain.ServerID) (productrepo.Product, error) {
	if r.pool == nil {
		return productrepo.Product{}, errors.New("nil postgres pool")
	}
	uid, ok := parseID(id)
	if !ok {
		return productrepo.Product{}, productrepo.ErrNotFound
	}
	return getProduct(ctx, r.pool, owner, uid)
}

func (r *ProductRepo) List(ctx context.Context, owner domain.OwnerID, offset, limit int) ([]productrepo.Product, int, error) {
	if r.pool == nil {
		return nil, 0, errors.New("nil postgres pool")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM products WHERE owner = $1`, string(owner)).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+productFrom+`
		WHERE p.owner = $1
		ORDER BY p.created_at DESC, p.id ASC
		OFFSET $2 LIMIT $3
	`, string(owner), offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]productrepo.Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *ProductRepo) NameTaken(ctx context.Context, owner domain.OwnerID, nameKey string, exclude *domain.ServerID) (bool, error) {
	if r.pool == nil {
		return false, errors.New("nil postgres pool")
	}
	ex := excludeArg(exclude)
	var taken bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM products
			WHERE owner = $1 AND name_key = $2 AND ($3::uuid IS NULL OR id <> $3)
		)
	`, string(owner), nameKey, ex).Scan(&taken)
	return taken, err
}

func (r *ProductRepo) RecordSale(ctx context.Context, s productrepo.Sale) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	productID, ok := parseID(s.ProductID)
	if !ok {
		return productrepo.ErrNotFound
	}
	saleID, err := uuid.Parse(s.ID)
	if err != nil {
		return fmt.Errorf("invalid sale id: %w", err)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var stock int
		err := tx.QueryRow(ctx, `
			SELECT stock FROM products WHERE owner = $1 AND id = $2 FOR UPDATE
		`, string(s.Owner), productID).Scan(&stock)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return productrepo.ErrNotFound
			}
			return err
		}
		if stock < s.Quantity {
			return productrepo.ErrInsufficientStock
		}
		if _, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock - $3, updated_at = $4 WHERE owner = $1 AND id = $2
		`, string(s.Owner), productID, s.Quantity, s.SoldAt.UTC()); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO sales (id, owner, product_id, quantity, sold_at) VALUES ($1, $2, $3, $4, $5)
		`, saleID, string(s.Owner), productID, s.Quantity, s.SoldAt.UTC())
		return err
	})
}

func (r *ProductRepo) CountSales(ctx context.Context, owner domain.OwnerID, id domain.ServerID) (int, error) {
	if r.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	uid, ok := parseID(id)
	if !ok {
		return 0, nil
	}
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM sales WHERE owner = $1 AND product_id = $2
	`, string(owner), uid).Scan(&n)
	return n, err
}

func getProduct(ctx context.Context, q querier, owner domain.OwnerID, id uuid.UUID) (productrepo.Product, error) {
	row := q.QueryRow(ctx, `SELECT `+productColumns+productFrom+`
		WHERE p.owner = $1 AND p.id = $2
	`, string(owner), id)
	return scanProduct(row)
}

func scanProduct(row rowScanner) (productrepo.Product, error) {
	var (
		id           uuid.UUID
		owner        string
		name         string
		nameKey      string
		description  *string
		price        decimal.Decimal
		stock        int
		unit         string
		categoryID   *uuid.UUID
		categoryName *string
		createdAt    time.Time
		updatedAt    time.Time
	)
	if err := row.Scan(
		&id,
		&owner,
		&name,
		&nameKey,
		&description,
		&price,
		&stock,
		&unit,
		&categoryID,
		&categoryName,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return productrepo.Product{}, productrepo.ErrNotFound
		}
		return productrepo.Product{}, err
	}
	return productrepo.Product{
		ID:           serverID(id),
		Owner:        domain.OwnerID(owner),
		Name:         name,
		NameKey:      nameKey,
		Description:  description,
		Price:        price,
		Stock:        stock,
		Unit:         unit,
		CategoryID:   optionalServerID(categoryID),
		CategoryName: categoryName,
		CreatedAt:    createdAt.UTC(),
		UpdatedAt:    updatedAt.UTC(),
	}, nil
}

func mapProductWriteErr(err error) error {
	if err == nil {
		return nil
	}
	pe, ok := postgres.AsPgError(err)
	if !ok {
		return err
	}
	switch {
	case pe.Code == postgres.UniqueViolationCode && pe.ConstraintName == "products_owner_name_unique":
		return productrepo.ErrNameTaken
	case pe.Code == postgres.ForeignKeyViolationCode && pe.ConstraintName == "products_category_fk":
		return productrepo.ErrCategoryNotFound
	default:
		return err
	}
}
