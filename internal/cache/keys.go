package cache

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
)

// Cache key layout. Everything the service caches lives under KeyPrefix.
const (
	KeyPrefix   = "tasks:"
	AllTasksKey = KeyPrefix + "all"
	StatsKey    = KeyPrefix + "stats"
	listPrefix  = KeyPrefix + "list:"
)

// TaskKey is the key of a single task.
func TaskKey(id uuid.UUID) string {
	return KeyPrefix + id.String()
}

// ListKey is the key of one page of a list query. The plain "first page of
// everything" query maps to AllTasksKey; every other filter gets a canonical
// hashed key.
func ListKey(filter domain.TaskFilter) string {
	if filter.IsUnfiltered() {
		return AllTasksKey
	}
	return listPrefix + CanonicalKey(filter.Fields())
}

// CanonicalKey hashes fields into a key that does not depend on map iteration
// order. Empty values are omitted so that an unset field and a field set to
// "" produce the same key.
func CanonicalKey(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name, value := range fields {
		if value == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(fields[name]))
	}

	return strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}
