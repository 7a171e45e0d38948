package domain

// Page is one page of a server-paginated collection.
type Page[E any] struct {
	Items []E
	Total int
	Page  int
	Limit int
}

// ListQuery selects a page. Zero values mean "server default".
type ListQuery struct {
	Page  int
	Limit int
}
