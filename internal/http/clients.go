package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/jmehdipour/monozip/internal/model"
	"github.com/jmehdipour/monozip/internal/password"
	"github.com/jmehdipour/monozip/internal/service/clients"
	"github.com/labstack/echo/v4"
)

// CustomLabel is the display name of the free-text entry.
const CustomLabel = "Custom（自由入力）"

type clientView struct {
	Key        string     `json:"key"`
	Name       string     `json:"name"`
	Label      string     `json:"label"`
	Prefix     string     `json:"prefix"`
	SuffixRule string     `json:"suffixRule"`
	Rule       string     `json:"rule"`
	Version    int64      `json:"version,omitempty"`
	Custom     bool       `json:"custom,omitempty"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

func viewOf(c model.ClientRecord) clientView {
	v := clientView{
		Key:        c.Key,
		Name:       c.Name,
		Label:      c.Name,
		Prefix:     c.Prefix,
		SuffixRule: c.SuffixRule,
		Rule:       password.RuleLabel(c.Prefix),
		Version:    c.Version,
	}
	if !c.CreatedAt.IsZero() {
		t := c.CreatedAt
		v.CreatedAt = &t
	}
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		v.UpdatedAt = &t
	}
	return v
}

// viewsOf renders the list shown to the browser, with the free-text entry
// appended unless a stored client already uses its key.
func viewsOf(list []model.ClientRecord) []clientView {
	out := make([]clientView, 0, len(list)+1)
	hasCustom := false
	for _, c := range list {
		if c.Key == model.CustomKey {
			hasCustom = true
		}
		out = append(out, viewOf(c))
	}
	if !hasCustom {
		out = append(out, clientView{
			Key:        model.CustomKey,
			Name:       CustomLabel,
			Label:      CustomLabel,
			SuffixRule: password.FreeTextRuleLabel,
			Rule:       password.FreeTextRuleLabel,
			Custom:     true,
		})
	}
	return out
}

type listClientsResp struct {
	Clients  []clientView `json:"clients"`
	Fallback bool         `json:"fallback,omitempty"`
}

func listClientsHandler(svc *clients.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		snap := svc.List(c.Request().Context())
		return c.JSON(http.StatusOK, listClientsResp{
			Clients:  viewsOf(snap.Clients),
			Fallback: snap.Fallback,
		})
	}
}

// adminReq is the body of the admin routes. Both snake and camel case
// spellings are accepted.
type adminReq struct {
	Key              string `json:"key"`
	Name             string `json:"name"`
	Prefix           string `json:"prefix"`
	SuffixRule       string `json:"suffix_rule"`
	SuffixRuleCamel  string `json:"suffixRule"`
	Version          int64  `json:"version"`
	AdminPassword    string `json:"admin_password"`
	AdminPasswordAlt string `json:"adminPassword"`
}

// secret is compared verbatim, so it is not trimmed.
func (r adminReq) secret() string {
	if r.AdminPassword != "" {
		return r.AdminPassword
	}
	return r.AdminPasswordAlt
}

func (r adminReq) input() clients.Input {
	return clients.Input{
		Name:       r.Name,
		Prefix:     r.Prefix,
		SuffixRule: firstNonEmpty(r.SuffixRule, r.SuffixRuleCamel),
	}
}

type mutationResp struct {
	Success  bool         `json:"success"`
	Message  string       `json:"message"`
	Client   clientView   `json:"client"`
	Clients  []clientView `json:"clients"`
	Fallback bool         `json:"fallback,omitempty"`
	Warning  string       `json:"warning,omitempty"`
}

func mutationOf(res clients.Result) mutationResp {
	return mutationResp{
		Success:  true,
		Message:  res.Message,
		Client:   viewOf(res.Client),
		Clients:  viewsOf(res.Clients),
		Fallback: res.Fallback,
		Warning:  res.Warning,
	}
}

func addClientHandler(svc *clients.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req adminReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, errorBody{Error: "bad request", Kind: "validation"})
		}
		res, err := svc.Add(c.Request().Context(), req.secret(), req.input())
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, mutationOf(res))
	}
}

func updateClientHandler(svc *clients.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req adminReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, errorBody{Error: "bad request", Kind: "validation"})
		}
		res, err := svc.Update(c.Request().Context(), req.secret(), req.Key, req.input(), req.Version)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, mutationOf(res))
	}
}

func deleteClientHandler(svc *clients.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req adminReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, errorBody{Error: "bad request", Kind: "validation"})
		}
		res, err := svc.Delete(c.Request().Context(), req.secret(), req.Key, req.Version)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, mutationOf(res))
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
