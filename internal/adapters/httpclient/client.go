// Package httpclient implements catalogapi.Client over the catalog HTTP API.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"
	"github.com/sirupsen/logrus"

	"github.com/Overland-East-Bay/stockroom/internal/adapters/httpapi/dto"
	"github.com/Overland-East-Bay/stockroom/internal/domain"
	"github.com/Overland-East-Bay/stockroom/internal/platform/logging"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/catalogapi"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerSubject        = "X-Debug-Subject"

	// maxErrorBody bounds how much of a failed response is read.
	maxErrorBody = 64 << 10
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	// Owner is sent as the dev-auth subject when set.
	Owner string
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

type Client struct {
	base  *url.URL
	http  *http.Client
	owner string
	log   logrus.FieldLogger
}

var _ catalogapi.Client = (*Client)(nil)

func New(cfg Config, log logrus.FieldLogger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse catalog api url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("catalog api url %q must be absolute", cfg.BaseURL)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Client{base: base, http: hc, owner: cfg.Owner, log: log}, nil
}

type request struct {
	method         string
	path           string
	query          string
	idempotencyKey string
	body           any
}

// do sends req and decodes the data envelope into out (nil to discard).
func (c *Client) do(ctx context.Context, req request, out any) error {
	u := *c.base
	u.Path += req.path
	u.RawQuery = req.query

	var body io.Reader
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", req.method, req.path, err)
		}
		body = bytes.NewReader(b)
	}

	hr, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", req.method, req.path, err)
	}
	hr.Header.Set("Accept", "application/json")
	if req.body != nil {
		hr.Header.Set("Content-Type", "application/json")
	}
	if req.idempotencyKey != "" {
		hr.Header.Set(headerIdempotencyKey, req.idempotencyKey)
	}
	if c.owner != "" {
		hr.Header.Set(headerSubject, c.owner)
	}

	log := c.log.WithFields(logrus.Fields{"method": req.method, "path": req.path})
	start := time.Now()
	resp, err := c.http.Do(hr)
	if err != nil {
		log.WithError(err).Warn("catalog api request failed")
		return fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()
	log = log.WithFields(logrus.Fields{"status": resp.StatusCode, "duration": time.Since(start)})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeError(resp)
		log.WithField("code", apiErr.Code).Debug("catalog api returned an error")
		return apiErr
	}
	log.Debug("catalog api request done")

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	env := dto.Envelope[json.RawMessage]{}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.method, req.path, err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s data: %w", req.method, req.path, err)
	}
	return nil
}

func decodeError(resp *http.Response) *catalogapi.APIError {
	out := &catalogapi.APIError{Status: resp.StatusCode, Code: catalogapi.CodeInternal}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(b) == 0 {
		return out
	}
	var er dto.ErrorResponse
	if err := json.Unmarshal(b, &er); err != nil {
		return out
	}
	if er.Code != "" {
		out.Code = er.Code
	}
	out.Message = er.Error
	if d, err := er.Details.Get(); err == nil {
		out.Details = d
	}
	if rid, err := er.RequestID.Get(); err == nil {
		out.RequestID = rid
	}
	return out
}

func listQuery(q domain.ListQuery) string {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v.Encode()
}

func checkNameQuery(name string, excludeID *domain.ServerID) (string, error) {
	parts := make([]string, 0, 2)
	p, err := runtime.StyleParamWithLocation("form", true, "name", runtime.ParamLocationQuery, name)
	if err != nil {
		return "", fmt.Errorf("encode name: %w", err)
	}
	parts = append(parts, p)
	if excludeID != nil {
		p, err := runtime.StyleParamWithLocation("form", true, "excludeId", runtime.ParamLocationQuery, string(*excludeID))
		if err != nil {
			return "", fmt.Errorf("encode excludeId: %w", err)
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, "&"), nil
}

func entityPath(kind domain.ResourceKind, id domain.ServerID) string {
	return "/" + string(kind) + "/" + url.PathEscape(string(id))
}

func (c *Client) ListProducts(ctx context.Context, q domain.ListQuery) (domain.Page[domain.Product], error) {
	var page dto.Page[dto.Product]
	if err := c.do(ctx, request{method: http.MethodGet, path: "/products", query: listQuery(q)}, &page); err != nil {
		return domain.Page[domain.Product]{}, err
	}
	return dto.PageToDomain(page, dto.Product.ToDomain), nil
}

func (c *Client) GetProduct(ctx context.Context, id domain.ServerID) (domain.Product, error) {
	var p dto.Product
	if err := c.do(ctx, request{method: http.MethodGet, path: entityPath(domain.ResourceProducts, id)}, &p); err != nil {
		return domain.Product{}, err
	}
	return p.ToDomain(), nil
}

func (c *Client) CreateProduct(ctx context.Context, token domain.CorrelationToken, f domain.ProductFields) (domain.Product, error) {
	var p dto.Product
	err := c.do(ctx, request{
		method:         http.MethodPost,
		path:           "/products",
		idempotencyKey: token.String(),
		body:           dto.CreateProductFromFields(f),
	}, &p)
	if err != nil {
		return domain.Product{}, err
	}
	return p.ToDomain(), nil
}

func (c *Client) UpdateProduct(ctx context.Context, id domain.ServerID, ch domain.ProductChanges) (domain.Product, error) {
	var p dto.Product
	err := c.do(ctx, request{
		method: http.MethodPut,
		path:   entityPath(domain.ResourceProducts, id),
		body:   dto.UpdateProductFromChanges(ch),
	}, &p)
	if err != nil {
		return domain.Product{}, err
	}
	return p.ToDomain(), nil
}

func (c *Client) DeleteProduct(ctx context.Context, id domain.ServerID) error {
	return c.do(ctx, request{method: http.MethodDelete, path: entityPath(domain.ResourceProducts, id)}, nil)
}

func (c *Client) CheckProductName(ctx context.Context, name string, excludeID *domain.ServerID) (bool, error) {
	return c.checkName(ctx, domain.ResourceProducts, name, excludeID)
}

func (c *Client) ListCategories(ctx context.Context, q domain.ListQuery) (domain.Page[domain.Category], error) {
	var page dto.Page[dto.Category]
	if err := c.do(ctx, request{method: http.MethodGet, path: "/categories", query: listQuery(q)}, &page); err != nil {
		return domain.Page[domain.Category]{}, err
	}
	return dto.PageToDomain(page, dto.Category.ToDomain), nil
}

func (c *Client) GetCategory(ctx context.Context, id domain.ServerID) (domain.Category, error) {
	var cat dto.Category
	if err := c.do(ctx, request{method: http.MethodGet, path: entityPath(domain.ResourceCategories, id)}, &cat); err != nil {
		return domain.Category{}, err
	}
	return cat.ToDomain(), nil
}

func (c *Client) CreateCategory(ctx context.Context, token domain.CorrelationToken, f domain.CategoryFields) (domain.Category, error) {
	var cat dto.Category
	err := c.do(ctx, request{
		method:         http.MethodPost,
		path:           "/categories",
		idempotencyKey: token.String(),
		body:           dto.CreateCategoryFromFields(f),
	}, &cat)
	if err != nil {
		return domain.Category{}, err
	}
	return cat.ToDomain(), nil
}

func (c *Client) UpdateCategory(ctx context.Context, id domain.ServerID, ch domain.CategoryChanges) (domain.Category, error) {
	var cat dto.Category
	err := c.do(ctx, request{
		method: http.MethodPut,
		path:   entityPath(domain.ResourceCategories, id),
		body:   dto.UpdateCategoryFromChanges(ch),
	}, &cat)
	if err != nil {
		return domain.Category{}, err
	}
	return cat.ToDomain(), nil
}

func (c *Client) DeleteCategory(ctx context.Context, id domain.ServerID) error {
	return c.do(ctx, request{method: http.MethodDelete, path: entityPath(domain.ResourceCategories, id)}, nil)
}

func (c *Client) CheckCategoryName(ctx context.Context, name string, excludeID *domain.ServerID) (bool, error) {
	return c.checkName(ctx, domain.ResourceCategories, name, excludeID)
}

func (c *Client) checkName(ctx context.Context, kind domain.ResourceKind, name string, excludeID *domain.ServerID) (bool, error) {
	q, err := checkNameQuery(name, excludeID)
	if err != nil {
		return false, err
	}
	var res dto.CheckNameResponse
	if err := c.do(ctx, request{method: http.MethodGet, path: "/" + string(kind) + "/check-name", query: q}, &res); err != nil {
		return false, err
	}
	return res.IsUnique, nil
}

// RecordSale records a sale against a product. It is not part of
// catalogapi.Client; sales are made outside the inventory workflow.
func (c *Client) RecordSale(ctx context.Context, id domain.ServerID, quantity int) (dto.Sale, error) {
	var s dto.Sale
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   entityPath(domain.ResourceProducts, id) + "/sales",
		body:   dto.RecordSaleRequest{Quantity: quantity},
	}, &s)
	if err != nil {
		return dto.Sale{}, err
	}
	return s, nil
}

