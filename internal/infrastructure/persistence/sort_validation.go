package persistence

import (
	"strings"
)

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

// TransactionSortFields contains allowed sort fields for transactions
var TransactionSortFields = map[string]bool{
	"id":            true,
	"created_at":    true,
	"updated_at":    true,
	"description":   true,
	"supplier_name": true,
	"type":          true,
	"status":        true,
	"amount":        true,
	"due_date":      true,
	"payment_date":  true,
}

// BatchSortFields contains allowed sort fields for payment batches
var BatchSortFields = map[string]bool{
	"id":                     true,
	"created_at":             true,
	"updated_at":             true,
	"name":                   true,
	"status":                 true,
	"total_amount":           true,
	"scheduled_payment_date": true,
}

// TemplateSortFields contains allowed sort fields for recurring templates
var TemplateSortFields = map[string]bool{
	"id":            true,
	"created_at":    true,
	"updated_at":    true,
	"description":   true,
	"next_due_date": true,
	"amount":        true,
	"active":        true,
}

// AuditSortFields contains allowed sort fields for audit log entries
var AuditSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"entity_type": true,
	"action":      true,
}
