package middleware

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// AttemptLimitConfig config for the Redis-based per-IP attempt limiter.
type AttemptLimitConfig struct {
	Redis          *redis.Client
	Attempts       int           // max requests per window and IP
	KeyPrefix      string        // e.g. "monozip:rl:login:"
	Window         time.Duration // default 1m
	RetryAfterHint bool          // set Retry-After header when limited
	Now            func() time.Time
}

// AttemptLimitMiddleware applies a fixed-window limit keyed by client IP.
// It guards the secret-checking routes against guessing.
func AttemptLimitMiddleware(cfg AttemptLimitConfig) echo.MiddlewareFunc {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "monozip:rl:"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Attempts <= 0 || cfg.Redis == nil {
				// no limit configured or redis missing (dev): allow
				return next(c)
			}

			// fixed-window key: {prefix}{ip}:{window index}
			now := cfg.Now()
			slot := now.UnixNano() / int64(cfg.Window)
			key := cfg.KeyPrefix + c.RealIP() + ":" + strconv.FormatInt(slot, 10)

			ctx := c.Request().Context()
			pipe := cfg.Redis.Pipeline()
			cnt := pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, cfg.Window*2)
			if _, err := pipe.Exec(ctx); err != nil {
				return next(c)
			}

			if cnt.Val() > int64(cfg.Attempts) {
				if cfg.RetryAfterHint {
					remain := cfg.Window - time.Duration(now.UnixNano()%int64(cfg.Window))
					secs := int(remain.Round(time.Second) / time.Second)
					if secs < 1 {
						secs = 1
					}
					c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				}
				return c.JSON(http.StatusTooManyRequests, map[string]any{
					"success": false,
					"error":   "too many attempts, try again later",
					"kind":    "rate_limited",
				})
			}
			return next(c)
		}
	}
}
