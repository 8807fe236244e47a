package shared

// Filter holds the paging and ordering options shared by list queries
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
}

// DefaultFilter returns a filter with default values
func DefaultFilter() Filter {
	return Filter{
		Page:     1,
		PageSize: 20,
		OrderBy:  "issue_date",
		OrderDir: "desc",
	}
}

