package categoryrepo

import "errors"

var (
	// ErrNotFound indicates the category does not exist for the owner.
	ErrNotFound = errors.New("category not found")

	// ErrNameTaken indicates another category of the owner has the same name key.
	ErrNameTaken = errors.New("category name taken")

	// ErrHasProducts indicates the category cannot be deleted while products reference it.
	ErrHasProducts = errors.New("category has products")
)
