package stats

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalItems  int  `json:"totalItems"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// NormalizePage clamps page and size to usable values.
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// Paginate slices items for the given 1-based page. Pages past the end are empty.
func Paginate[T any](items []T, page, size int) ([]T, Pagination) {
	page, size = NormalizePage(page, size)
	total := len(items)

	start := total
	if page-1 <= total/size {
		start = min((page-1)*size, total)
	}
	end := min(start+size, total)

	out := make([]T, end-start)
	copy(out, items[start:end])

	return out, Pagination{
		CurrentPage: page,
		TotalPages:  (total + size - 1) / size,
		TotalItems:  total,
		HasNextPage: end < total,
		HasPrevPage: page > 1,
	}
}
