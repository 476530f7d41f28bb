package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jmehdipour/monozip/internal/archive"
	"github.com/jmehdipour/monozip/internal/config"
	"github.com/jmehdipour/monozip/internal/http/middleware"
	"github.com/jmehdipour/monozip/internal/logger"
	"github.com/jmehdipour/monozip/internal/metrics"
	"github.com/jmehdipour/monozip/internal/repository"
	"github.com/jmehdipour/monozip/internal/service/clients"
	"github.com/jmehdipour/monozip/internal/session"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deps are the collaborators the web surface is built from. Events and
// Redis may be nil.
type Deps struct {
	Config  config.Config
	Gate    *session.Gate
	Clients *clients.Service
	Events  repository.EventsRepository
	Redis   *redis.Client
	Now     func() time.Time
}

type Server struct{ e *echo.Echo }

func NewServer(d Deps) *Server {
	if d.Now == nil {
		d.Now = time.Now
	}
	cfg := d.Config

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.WARN)
	e.Use(echoMid.Recover(), requestLogger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.SessionMiddleware(d.Gate)
	loginRL := middleware.AttemptLimitMiddleware(middleware.AttemptLimitConfig{
		Redis:          d.Redis,
		Attempts:       cfg.RateLimit.Attempts,
		Window:         cfg.RateLimit.Window,
		KeyPrefix:      "monozip:rl:login:",
		RetryAfterHint: true,
	})
	adminRL := middleware.AttemptLimitMiddleware(middleware.AttemptLimitConfig{
		Redis:          d.Redis,
		Attempts:       cfg.RateLimit.Attempts,
		Window:         cfg.RateLimit.Window,
		KeyPrefix:      "monozip:rl:admin:",
		RetryAfterHint: true,
	})

	// login gate
	e.GET("/login", loginPageHandler(d.Gate))
	e.POST("/login", loginHandler(d.Gate, cfg.Auth.CookieSecure), loginRL)
	e.POST("/logout", logoutHandler(d.Gate, cfg.Auth.CookieSecure))

	// pages
	e.GET("/", indexHandler(), authMW)
	e.GET("/index.html", indexHandler(), authMW)

	// api
	api := e.Group("/api", authMW)
	api.GET("/clients", listClientsHandler(d.Clients))
	api.POST("/generate", generateHandler(d.Clients, d.Now))
	api.POST("/add_client", addClientHandler(d.Clients), adminRL)
	api.POST("/update_client", updateClientHandler(d.Clients), adminRL)
	api.POST("/delete_client", deleteClientHandler(d.Clients), adminRL)
	api.POST("/zip", zipHandler(archive.Builder{MaxTotal: cfg.Archive.MaxUploadBytes}, d.Now))
	api.GET("/audit", listAuditHandler(d.Events))

	return &Server{e: e}
}

// requestLogger sends one zap line per request.
func requestLogger() echo.MiddlewareFunc {
	return echoMid.RequestLoggerWithConfig(echoMid.RequestLoggerConfig{
		LogMethod:   true,
		LogURIPath:  true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v echoMid.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("path", v.URIPath),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("ip", v.RemoteIP),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			logger.Named("http").Info("request", fields...)
			return nil
		},
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	logger.Named("http").Info("listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
