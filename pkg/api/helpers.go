package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/index"
)

func parsePositiveInt(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// indexFiltersFromQuery builds index.Filters from "meta.<key>=<value>"
// query parameters, e.g. "?meta.kind=module".
func indexFiltersFromQuery(c *gin.Context) index.Filters {
	filters := index.Filters{Metadata: map[string]string{}}
	const prefix = "meta."
	for key, values := range c.Request.URL.Query() {
		if len(key) <= len(prefix) || key[:len(prefix)] != prefix || len(values) == 0 {
			continue
		}
		filters.Metadata[key[len(prefix):]] = values[0]
	}
	if len(filters.Metadata) == 0 {
		filters.Metadata = nil
	}
	return filters
}
