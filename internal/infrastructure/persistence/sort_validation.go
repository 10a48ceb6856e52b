package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes the sort order to ASC or DESC, DESC by default
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "asc") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField when it is whitelisted, defaultField otherwise.
// Only whitelisted names ever reach an ORDER BY clause.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// RentalSortFields contains allowed sort fields for rentals
var RentalSortFields = map[string]bool{
	"created_at":     true,
	"updated_at":     true,
	"start_date":     true,
	"end_date":       true,
	"total_amount":   true,
	"amount_paid":    true,
	"status":         true,
	"payment_status": true,
}
