package logger

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestID attaches a request id to the fiber user context and echoes it in
// the X-Request-Id response header.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.SetUserContext(WithRequestID(c.UserContext(), id))
		c.Set("X-Request-Id", id)
		return c.Next()
	}
}

// FiberMiddleware logs every request through slog with the shared schema.
func FiberMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		route := ""
		if r := c.Route(); r != nil {
			route = r.Path
		}

		attrs := []any{
			"status", c.Response().StatusCode(),
			"method", c.Method(),
			"path", c.OriginalURL(),
			"route", route,
			"ip", c.IP(),
			"latency_ms", float64(latency.Microseconds()) / 1000.0,
		}

		l := FromContext(c.UserContext())
		if err != nil {
			l.Error("http request", append(attrs, "err", err.Error())...)
			return err
		}
		if c.Response().StatusCode() >= 500 {
			l.Error("http request", attrs...)
		} else {
			l.Info("http request", attrs...)
		}
		return nil
	}
}
