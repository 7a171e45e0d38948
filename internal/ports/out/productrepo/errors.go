package productrepo

import "errors"

var (
	// ErrNotFound indicates the product does not exist for the owner.
	ErrNotFound = errors.New("product not found")

	// ErrNameTaken indicates another product of the owner has the same name key.
	ErrNameTaken = errors.New("product name taken")

	// ErrCategoryNotFound indicates the referenced category does not exist for the owner.
	ErrCategoryNotFound = errors.New("product category not found")

	// ErrHasSales indicates the product cannot be deleted because sales reference it.
	ErrHasSales = errors.New("product has sales")

	// ErrInsufficientStock indicates a sale larger than the stock on hand.
	ErrInsufficientStock = errors.New("insufficient stock")
)
