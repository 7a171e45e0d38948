// Package inventory is the client-side facade over the catalog: cached reads of
// every view, optimistic writes through the mutation coordinators, and name
// validators for forms.
package inventory

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Overland-East-Bay/stockroom/internal/app/namecheck"
	"github.com/Overland-East-Bay/stockroom/internal/app/optimistic"
	"github.com/Overland-East-Bay/stockroom/internal/domain"
	"github.com/Overland-East-Bay/stockroom/internal/platform/logging"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/catalogapi"
	clockport "github.com/Overland-East-Bay/stockroom/internal/ports/out/clock"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/notify"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/viewcache"
)

const DefaultPageSize = 20

type (
	productCoordinator  = optimistic.Coordinator[domain.Product, domain.ProductFields, domain.ProductChanges]
	categoryCoordinator = optimistic.Coordinator[domain.Category, domain.CategoryFields, domain.CategoryChanges]
)

type Options struct {
	Notifier notify.Notifier
	Log      logrus.FieldLogger
	// PageSize is the limit of the default list query. Defaults to DefaultPageSize.
	PageSize int
	// NameCheckDelay is the validators' debounce. Defaults to namecheck.DefaultDelay.
	NameCheckDelay time.Duration
}

type Service struct {
	api   catalogapi.Client
	cache viewcache.Cache
	clk   clockport.Clock
	log   logrus.FieldLogger

	pageSize       int
	nameCheckDelay time.Duration

	products   *productCoordinator
	categories *categoryCoordinator
}

func New(api catalogapi.Client, cache viewcache.Cache, clk clockport.Clock, opts Options) *Service {
	s := &Service{
		api:            api,
		cache:          cache,
		clk:            clk,
		log:            opts.Log,
		pageSize:       opts.PageSize,
		nameCheckDelay: opts.NameCheckDelay,
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	if s.pageSize <= 0 {
		s.pageSize = DefaultPageSize
	}
	if s.nameCheckDelay <= 0 {
		s.nameCheckDelay = namecheck.DefaultDelay
	}

	shared := optimistic.Options{
		Notifier: opts.Notifier,
		Log:      s.log,
		Tokens:   optimistic.NewTokenSource(clk),
	}
	s.products = optimistic.New[domain.Product, domain.ProductFields, domain.ProductChanges](
		productResource{cache: cache}, productRemote{api: api}, cache, clk, shared)
	s.categories = optimistic.New[domain.Category, domain.CategoryFields, domain.CategoryChanges](
		categoryResource{}, categoryRemote{api: api}, cache, clk, shared)
	return s
}

func (s *Service) defaultQuery() domain.ListQuery {
	return domain.ListQuery{Page: 1, Limit: s.pageSize}
}

// Products returns the default product page, loading it when absent or stale.
func (s *Service) Products(ctx context.Context) (*domain.Page[domain.Product], error) {
	return viewcache.ReadAs(ctx, s.cache, viewcache.ListKey(domain.ResourceProducts),
		func(ctx context.Context) (*domain.Page[domain.Product], error) {
			p, err := s.api.ListProducts(ctx, s.defaultQuery())
			if err != nil {
				return nil, err
			}
			return &p, nil
		})
}

func (s *Service) Product(ctx context.Context, id domain.ServerID) (*domain.Product, error) {
	return viewcache.ReadAs(ctx, s.cache, viewcache.DetailKey(domain.ResourceProducts, id),
		func(ctx context.Context) (*domain.Product, error) {
			p, err := s.api.GetProduct(ctx, id)
			if err != nil {
				return nil, err
			}
			return &p, nil
		})
}

// ProductSession returns the products touched by the current creation workflow,
// newest first.
func (s *Service) ProductSession() []domain.Product {
	items, _ := viewcache.PeekAs[[]domain.Product](s.cache, viewcache.SessionKey(domain.ResourceProducts))
	return items
}

func (s *Service) Categories(ctx context.Context) (*domain.Page[domain.Category], error) {
	return viewcache.ReadAs(ctx, s.cache, viewcache.ListKey(domain.ResourceCategories),
		func(ctx context.Context) (*domain.Page[domain.Category], error) {
			p, err := s.api.ListCategories(ctx, s.defaultQuery())
			if err != nil {
				return nil, err
			}
			return &p, nil
		})
}

func (s *Service) Category(ctx context.Context, id domain.ServerID) (*domain.Category, error) {
	return viewcache.ReadAs(ctx, s.cache, viewcache.DetailKey(domain.ResourceCategories, id),
		func(ctx context.Context) (*domain.Category, error) {
			c, err := s.api.GetCategory(ctx, id)
			if err != nil {
				return nil, err
			}
			return &c, nil
		})
}

func (s *Service) CategorySession() []domain.Category {
	items, _ := viewcache.PeekAs[[]domain.Category](s.cache, viewcache.SessionKey(domain.ResourceCategories))
	return items
}

// CreateProduct coerces the form input and creates the product optimistically.
// Input that cannot be coerced is rejected before any view changes.
func (s *Service) CreateProduct(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	f, err := in.Fields()
	if err != nil {
		return domain.Product{}, optimistic.Classify(domain.ResourceProducts, optimistic.OpCreate, err)
	}
	p, err := s.products.Create(ctx, f)
	if err != nil {
		return domain.Product{}, err
	}
	s.categoryCountsChanged()
	return p, nil
}

// UpdateProduct applies a partial update. An empty patch makes no request.
func (s *Service) UpdateProduct(ctx context.Context, id domain.ServerID, patch domain.ProductPatch) (domain.Product, error) {
	c, err := patch.Changes()
	if err != nil {
		return domain.Product{}, optimistic.Classify(domain.ResourceProducts, optimistic.OpUpdate, err)
	}
	return s.updateProduct(ctx, id, c)
}

// EditProduct submits a full product form, sending only the fields that differ
// from the product's current detail view.
func (s *Service) EditProduct(ctx context.Context, id domain.ServerID, in domain.ProductInput) (domain.Product, error) {
	cur, err := s.Product(ctx, id)
	if err != nil {
		return domain.Product{}, optimistic.Classify(domain.ResourceProducts, optimistic.OpUpdate, err)
	}
	c, err := domain.DiffProduct(*cur, in)
	if err != nil {
		return domain.Product{}, optimistic.Classify(domain.ResourceProducts, optimistic.OpUpdate, err)
	}
	return s.updateProduct(ctx, id, c)
}

func (s *Service) updateProduct(ctx context.Context, id domain.ServerID, c domain.ProductChanges) (domain.Product, error) {
	if c.IsEmpty() {
		cur, err := s.Product(ctx, id)
		if err != nil {
			return domain.Product{}, optimistic.Classify(domain.ResourceProducts, optimistic.OpUpdate, err)
		}
		return *cur, nil
	}
	p, err := s.products.Update(ctx, id, c)
	if err != nil {
		return domain.Product{}, err
	}
	if c.CategoryID.IsSpecified() {
		s.categoryCountsChanged()
	}
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id domain.ServerID) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.categoryCountsChanged()
	return nil
}

func (s *Service) CreateCategory(ctx context.Context, in domain.CategoryInput) (domain.Category, error) {
	f, err := in.Fields()
	if err != nil {
		return domain.Category{}, optimistic.Classify(domain.ResourceCategories, optimistic.OpCreate, err)
	}
	return s.categories.Create(ctx, f)
}

func (s *Service) UpdateCategory(ctx context.Context, id domain.ServerID, patch domain.CategoryPatch) (domain.Category, error) {
	c, err := patch.Changes()
	if err != nil {
		return domain.Category{}, optimistic.Classify(domain.ResourceCategories, optimistic.OpUpdate, err)
	}
	return s.updateCategory(ctx, id, c)
}

func (s *Service) EditCategory(ctx context.Context, id domain.ServerID, in domain.CategoryInput) (domain.Category, error) {
	cur, err := s.Category(ctx, id)
	if err != nil {
		return domain.Category{}, optimistic.Classify(domain.ResourceCategories, optimistic.OpUpdate, err)
	}
	c, err := domain.DiffCategory(*cur, in)
	if err != nil {
		return domain.Category{}, optimistic.Classify(domain.ResourceCategories, optimistic.OpUpdate, err)
	}
	return s.updateCategory(ctx, id, c)
}

func (s *Service) updateCategory(ctx context.Context, id domain.ServerID, c domain.CategoryChanges) (domain.Category, error) {
	if c.IsEmpty() {
		cur, err := s.Category(ctx, id)
		if err != nil {
			return domain.Category{}, optimistic.Classify(domain.ResourceCategories, optimistic.OpUpdate, err)
		}
		return *cur, nil
	}
	cat, err := s.categories.Update(ctx, id, c)
	if err != nil {
		return domain.Category{}, err
	}
	if c.Name.IsSpecified() {
		s.categoryNamesChanged()
	}
	return cat, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id domain.ServerID) error {
	return s.categories.Delete(ctx, id)
}

// categoryCountsChanged marks category views stale after a product mutation that
// may have moved a server-computed product count.
func (s *Service) categoryCountsChanged() {
	s.cache.Invalidate(viewcache.AnyOf(
		viewcache.ForView(domain.ResourceCategories, viewcache.ViewList),
		viewcache.ForView(domain.ResourceCategories, viewcache.ViewDetail),
	))
}

// categoryNamesChanged marks product views stale after a rename, since products
// carry a denormalized category name.
func (s *Service) categoryNamesChanged() {
	s.cache.Invalidate(viewcache.AnyOf(
		viewcache.ForView(domain.ResourceProducts, viewcache.ViewList),
		viewcache.ForView(domain.ResourceProducts, viewcache.ViewDetail),
	))
}

// NewProductNameValidator returns a validator for a product name field. original
// and exclude are nil on a create form. The caller must Close it.
func (s *Service) NewProductNameValidator(original *string, exclude *domain.ServerID, onChange func(namecheck.Result)) *namecheck.Validator {
	return namecheck.New(namecheck.CheckerFunc(s.api.CheckProductName), s.clk, namecheck.Options{
		Original:  original,
		ExcludeID: exclude,
		Delay:     s.nameCheckDelay,
		OnChange:  onChange,
		Log:       s.log.WithField("resource", domain.ResourceProducts),
	})
}

func (s *Service) NewCategoryNameValidator(original *string, exclude *domain.ServerID, onChange func(namecheck.Result)) *namecheck.Validator {
	return namecheck.New(namecheck.CheckerFunc(s.api.CheckCategoryName), s.clk, namecheck.Options{
		Original:  original,
		ExcludeID: exclude,
		Delay:     s.nameCheckDelay,
		OnChange:  onChange,
		Log:       s.log.WithField("resource", domain.ResourceCategories),
	})
}

// EndSession discards the session view of kind, ending the creation workflow.
func (s *Service) EndSession(kind domain.ResourceKind) {
	s.cache.Remove(viewcache.Exactly(viewcache.SessionKey(kind)))
}
