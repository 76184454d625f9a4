package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

func intQuery(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil {
		return def
	}
	return n
}

func floatQuery(c *gin.Context, key string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(c.Query(key)), 64)
	if err != nil {
		return def
	}
	return f
}

// strQueryPtr returns nil for a missing or blank parameter so it can feed an
// optional repository filter directly.
func strQueryPtr(c *gin.Context, key string) *string {
	if val := strings.TrimSpace(c.Query(key)); val != "" {
		return &val
	}
	return nil
}

// pageQuery reads limit/offset, clamping limit to (0, maxPageSize].
func pageQuery(c *gin.Context) (limit, offset int) {
	limit = intQuery(c, "limit", defaultPageSize)
	switch {
	case limit <= 0:
		limit = defaultPageSize
	case limit > maxPageSize:
		limit = maxPageSize
	}
	return limit, max(intQuery(c, "offset", 0), 0)
}

func paginationMeta(limit, offset int, total int64) map[string]any {
	return map[string]any{
		"limit":    limit,
		"offset":   offset,
		"total":    total,
		"has_next": int64(offset+limit) < total,
	}
}
