package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/jmehdipour/monozip/internal/repository"
	"github.com/labstack/echo/v4"
)

func listAuditHandler(events repository.EventsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		if events == nil {
			return c.JSON(http.StatusServiceUnavailable, errorBody{Error: "audit log is not configured", Kind: "unavailable"})
		}

		limit := 100
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		key := strings.TrimSpace(c.QueryParam("client"))

		evs, err := events.ListRecent(c.Request().Context(), key, limit)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)

			return c.JSON(http.StatusInternalServerError, errorBody{Error: "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"count":   len(evs),
			"results": evs,
		})
	}
}
