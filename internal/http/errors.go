package http

import (
	"net/http"

	"github.com/jmehdipour/monozip/internal/apperr"
	"github.com/jmehdipour/monozip/internal/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Limit   int64  `json:"limit,omitempty"`
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuth:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the JSON error body for err. Unexpected errors are
// logged and their details are not exposed.
func writeError(c echo.Context, err error) error {
	logUnexpected(c, err)

	kind := apperr.KindOf(err)
	msg := apperr.Message(err, "internal error")
	if kind == "" {
		kind = "internal"
	}
	return c.JSON(statusOf(kind), errorBody{Error: msg, Kind: string(kind)})
}

func logUnexpected(c echo.Context, err error) {
	if apperr.Expected(err) {
		return
	}
	logger.Named("http").Error("request failed",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.String("kind", string(apperr.KindOf(err))),
		zap.Error(err),
	)
}
