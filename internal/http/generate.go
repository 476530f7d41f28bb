package http

import (
	"net/http"
	"time"

	"github.com/jmehdipour/monozip/internal/apperr"
	"github.com/jmehdipour/monozip/internal/metrics"
	"github.com/jmehdipour/monozip/internal/model"
	"github.com/jmehdipour/monozip/internal/password"
	"github.com/jmehdipour/monozip/internal/service/clients"
	"github.com/labstack/echo/v4"
)

type generateReq struct {
	ClientKey      string  `json:"clientKey"`
	ClientKeyAlt   string  `json:"client_key"`
	Date           *string `json:"date"`
	CustomInput    string  `json:"customInput"`
	CustomInputAlt string  `json:"custom_input"`
}

type generateResp struct {
	Password string  `json:"password"`
	Date     *string `json:"date"` // YYYY-MM-DD, null when no date was applied
}

func generateHandler(svc *clients.Service, now func() time.Time) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req generateReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, errorBody{Error: "bad request", Kind: "validation"})
		}

		key := firstNonEmpty(req.ClientKey, req.ClientKeyAlt)
		if key == "" {
			return writeError(c, apperr.Validation("select a client"))
		}

		var date *time.Time
		if req.Date != nil {
			if raw := firstNonEmpty(*req.Date); raw != "" {
				d, err := password.ParseDate(raw)
				if err != nil {
					return writeError(c, err)
				}
				date = &d
			}
		}

		var target model.Target
		mode := "client"
		if key == model.CustomKey {
			mode = "custom"
			target = model.FreeTextTarget(firstNonEmpty(req.CustomInput, req.CustomInputAlt))
		} else {
			rec, err := svc.Lookup(c.Request().Context(), key)
			if err != nil {
				return writeError(c, err)
			}
			target = model.ClientTarget(rec)
			if date == nil {
				today := now()
				date = &today
			}
		}

		pw, err := password.Generate(target, date, now())
		if err != nil {
			return writeError(c, err)
		}
		metrics.PasswordsGenerated.WithLabelValues(mode).Inc()

		resp := generateResp{Password: pw}
		if date != nil {
			s := date.Format(password.DateLayout)
			resp.Date = &s
		}
		return c.JSON(http.StatusOK, resp)
	}
}
