package ratelimit

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/emranffl/minifyurl/internal/token"
)

// Class names a route family with its default quota. Identifiers embed the
// class name so one client's API traffic and redirect traffic count apart.
type Class struct {
	Name   string
	Limit  int
	Window time.Duration
}

var (
	ClassAPI      = Class{Name: "api", Limit: 100, Window: time.Minute}
	ClassRedirect = Class{Name: "redirect", Limit: 1000, Window: time.Minute}
)

var tierLimits = map[token.Tier]int{
	token.TierFree:       100,
	token.TierPremium:    1000,
	token.TierEnterprise: 5000,
}

// Gate is the fiber middleware gating every entry point. An API key on the
// request switches the identifier from IP to subject and applies the tier
// quota (or the key's custom override).
type Gate struct {
	Limiter  *Limiter
	Tokens   *token.Store
	Fallback *LocalFallback
}

func (g *Gate) Middleware(class Class) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		limit := class.Limit
		identifier := c.IP() + ":" + class.Name

		if apiKey := c.Get("X-API-Key"); apiKey != "" && g.Tokens != nil {
			claims, err := g.Tokens.Lookup(ctx, apiKey)
			if err != nil {
				slog.Warn("api key lookup failed", "err", err)
			} else if claims != nil {
				identifier = claims.SubjectID + ":" + class.Name
				if claims.CustomQuota > 0 {
					limit = claims.CustomQuota
				} else if l, ok := tierLimits[claims.Tier]; ok {
					limit = l
				}
			}
		}

		d, err := g.Limiter.Check(ctx, identifier, limit, class.Window)
		if err != nil {
			slog.Warn("rate limit check degraded to local fallback", "identifier", identifier, "err", err)
			if g.Fallback != nil && !g.Fallback.Allow(identifier, limit, class.Window) {
				return reject(c, limit, 0, time.Now().Add(class.Window))
			}
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			return reject(c, limit, d.Remaining, d.ResetAt)
		}
		return c.Next()
	}
}

func reject(c *fiber.Ctx, limit, remaining int, resetAt time.Time) error {
	c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

	retryIn := time.Until(resetAt).Round(time.Second)
	if retryIn < time.Second {
		retryIn = time.Second
	}
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error":   "Too many requests",
		"message": fmt.Sprintf("Please try again in %s", retryIn),
	})
}
