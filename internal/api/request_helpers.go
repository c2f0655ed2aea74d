package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
)

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	raw := chi.URLParam(r, paramName)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", domain.ErrInvalidID, paramName)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format", domain.ErrInvalidID, paramName)
	}
	return id, nil
}

// parseTaskFilter builds a TaskFilter from list query parameters. Enum values
// are upper-cased and checked; sorting and pagination are normalized later by
// the store.
func parseTaskFilter(q url.Values) (domain.TaskFilter, error) {
	filter := domain.TaskFilter{
		Search:    q.Get("search"),
		SortBy:    domain.SortField(q.Get("sortBy")),
		SortOrder: domain.SortOrder(q.Get("sortOrder")),
	}

	if raw := q.Get("status"); raw != "" {
		status, err := domain.ParseTaskStatus(raw)
		if err != nil {
			return domain.TaskFilter{}, err
		}
		filter.Status = status
	}

	if raw := q.Get("priority"); raw != "" {
		filter.Priority = domain.TaskPriority(raw)
	}

	var err error
	if filter.Page, err = intParam(q, "page"); err != nil {
		return domain.TaskFilter{}, err
	}
	if filter.Limit, err = intParam(q, "limit"); err != nil {
		return domain.TaskFilter{}, err
	}

	if err := filter.Validate(); err != nil {
		return domain.TaskFilter{}, err
	}
	return filter, nil
}

func intParam(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrValidation, name)
	}
	return n, nil
}
