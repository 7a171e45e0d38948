package catalogrepo

import (
	"testing"

	"github.com/Overland-East-Bay/stockroom/internal/adapters/contracttest"
	categoryrepoport "github.com/Overland-East-Bay/stockroom/internal/ports/out/categoryrepo"
	productrepoport "github.com/Overland-East-Bay/stockroom/internal/ports/out/productrepo"
)

func TestContract_CatalogRepos(t *testing.T) {
	contracttest.RunCatalogRepos(t, func(t *testing.T) (productrepoport.Repository, categoryrepoport.Repository, contracttest.CleanupFunc) {
		t.Helper()
		s := NewStore()
		return s.Products(), s.Categories(), nil
	})
}
