package errors

import (
	"fmt"
	"strings"
)

// RowCategory classifies why a statement row was not kept
type RowCategory string

const (
	CategoryMissingTitle   RowCategory = "missing_title"
	CategoryInvalidRevenue RowCategory = "invalid_revenue"
	CategoryInvalidNumber  RowCategory = "invalid_number"
	CategoryInvalidDate    RowCategory = "invalid_date"
	CategoryShortRow       RowCategory = "short_row"
	CategoryDuplicateRow   RowCategory = "duplicate_row"
)

// RowError describes one skipped or suspicious statement row with enough context for triage
type RowError struct {
	Title    string
	Reason   string
	Category RowCategory
	Row      int
}

func (e *RowError) Error() string {
	title := e.Title
	if title == "" {
		title = "<untitled>"
	}
	return fmt.Sprintf("row %d (%q): %s", e.Row, title, e.Reason)
}

// NewRowError creates a new row error
func NewRowError(row int, title string, category RowCategory, reason string) *RowError {
	return &RowError{
		Row:      row,
		Title:    strings.TrimSpace(title),
		Category: category,
		Reason:   reason,
	}
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
