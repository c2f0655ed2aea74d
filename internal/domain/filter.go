package domain

import (
	"strconv"
	"strings"
)

// Pagination defaults applied by TaskFilter.Normalize.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// SortOrder is the direction of a list query.
type SortOrder string

// Supported sort orders
const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// SortField names a task attribute a list may be ordered by.
type SortField string

// Sortable task fields. Anything else falls back to SortByCreatedAt.
const (
	SortByTitle     SortField = "title"
	SortByCreatedAt SortField = "createdAt"
	SortByDueDate   SortField = "dueDate"
	SortByPriority  SortField = "priority"
	SortByStatus    SortField = "status"
)

var sortableFields = map[SortField]struct{}{
	SortByTitle:     {},
	SortByCreatedAt: {},
	SortByDueDate:   {},
	SortByPriority:  {},
	SortByStatus:    {},
}

// TaskFilter is the query shape accepted by list operations.
// Zero values mean "not filtered" / "use the default".
type TaskFilter struct {
	Status    TaskStatus   `json:"status,omitempty"`
	Priority  TaskPriority `json:"priority,omitempty"`
	Search    string       `json:"search,omitempty"`
	SortBy    SortField    `json:"sort_by,omitempty"`
	SortOrder SortOrder    `json:"sort_order,omitempty"`
	Page      int          `json:"page,omitempty"`
	Limit     int          `json:"limit,omitempty"`
}

// Validate rejects filters carrying unknown enum values.
func (f TaskFilter) Validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return ErrInvalidTaskStatus
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return ErrInvalidTaskPriority
	}
	return nil
}

// Normalize returns a copy of the filter with defaults applied, the sort field
// restricted to the allow-list and pagination clamped.
func (f TaskFilter) Normalize() TaskFilter {
	f.Search = strings.TrimSpace(f.Search)

	if _, ok := sortableFields[f.SortBy]; !ok {
		f.SortBy = SortByCreatedAt
	}

	switch SortOrder(strings.ToUpper(string(f.SortOrder))) {
	case SortAsc:
		f.SortOrder = SortAsc
	default:
		f.SortOrder = SortDesc
	}

	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}

	return f
}

// Offset is the number of rows to skip for the filter's page.
func (f TaskFilter) Offset() int {
	n := f.Normalize()
	return (n.Page - 1) * n.Limit
}

// IsUnfiltered reports whether the normalized filter is the plain
// "first page of everything, newest first" query.
func (f TaskFilter) IsUnfiltered() bool {
	return f.Normalize() == TaskFilter{}.Normalize()
}

// Fields returns the normalized filter as a flat name/value map, suitable for
// building an order-independent cache key.
func (f TaskFilter) Fields() map[string]string {
	n := f.Normalize()
	return map[string]string{
		"status":    string(n.Status),
		"priority":  string(n.Priority),
		"search":    n.Search,
		"sortBy":    string(n.SortBy),
		"sortOrder": string(n.SortOrder),
		"page":      strconv.Itoa(n.Page),
		"limit":     strconv.Itoa(n.Limit),
	}
}
