package http

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"

	"github.com/jmehdipour/monozip/internal/apperr"
	"github.com/jmehdipour/monozip/internal/metrics"
	"github.com/jmehdipour/monozip/internal/session"
	"github.com/labstack/echo/v4"
)

var (
	//go:embed web/login.html
	loginHTML string
	//go:embed web/index.html
	indexHTML []byte

	loginTmpl = template.Must(template.New("login").Parse(loginHTML))
)

func renderLogin(c echo.Context, status int, msg string) error {
	var buf bytes.Buffer
	if err := loginTmpl.Execute(&buf, map[string]string{"Error": msg}); err != nil {
		return err
	}
	return c.HTMLBlob(status, buf.Bytes())
}

func sessionToken(c echo.Context) string {
	if ck, err := c.Cookie(session.CookieName); err == nil {
		return ck.Value
	}
	return ""
}

func sessionCookie(value string, secure bool, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     session.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

func loginPageHandler(gate *session.Gate) echo.HandlerFunc {
	return func(c echo.Context) error {
		if gate.IsAuthenticated(c.Request().Context(), sessionToken(c)) {
			return c.Redirect(http.StatusFound, "/")
		}
		return renderLogin(c, http.StatusOK, "")
	}
}

func loginHandler(gate *session.Gate, secureCookie bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		// compared verbatim, like the admin secret
		token, err := gate.Login(c.Request().Context(), c.FormValue("password"))
		if err != nil {
			if !apperr.Expected(err) {
				metrics.LoginAttempts.WithLabelValues("error").Inc()
				logUnexpected(c, err)
				return renderLogin(c, http.StatusServiceUnavailable, "login is temporarily unavailable")
			}
			metrics.LoginAttempts.WithLabelValues("denied").Inc()
			return renderLogin(c, statusOf(apperr.KindOf(err)), apperr.Message(err, "login failed"))
		}

		metrics.LoginAttempts.WithLabelValues("ok").Inc()
		c.SetCookie(sessionCookie(token, secureCookie, 0))
		return c.Redirect(http.StatusSeeOther, "/")
	}
}

func logoutHandler(gate *session.Gate, secureCookie bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		if token := sessionToken(c); token != "" {
			if err := gate.Logout(c.Request().Context(), token); err != nil {
				c.Logger().Warnf("logout: %v", err)
			}
		}
		c.SetCookie(sessionCookie("", secureCookie, -1))
		return c.Redirect(http.StatusSeeOther, "/login")
	}
}

func indexHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set("Cache-Control", "no-store")
		return c.HTMLBlob(http.StatusOK, indexHTML)
	}
}
