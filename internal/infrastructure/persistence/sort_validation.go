package persistence

import (
	"strings"
)

// DocumentSortFields are the columns a document listing may be ordered by.
// Sort input is interpolated into ORDER BY, so anything else is rejected.
var DocumentSortFields = map[string]bool{
	"created_at":      true,
	"updated_at":      true,
	"issue_date":      true,
	"document_number": true,
	"total_amount":    true,
	"status":          true,
}

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}
