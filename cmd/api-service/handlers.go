package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/emranffl/minifyurl/internal/alias"
	"github.com/emranffl/minifyurl/internal/config"
	"github.com/emranffl/minifyurl/internal/coord"
	"github.com/emranffl/minifyurl/internal/safety"
	"github.com/emranffl/minifyurl/internal/shortener"
	"github.com/emranffl/minifyurl/internal/token"
)

type server struct {
	cfg        config.Config
	allocator  *shortener.Allocator
	resolver   *shortener.Resolver
	validator  *alias.Validator
	tokens     *token.Store
	classifier safety.Classifier
	coordStore coord.Store
}

func (s *server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *server) handleRedirect(c *fiber.Ctx) error {
	code := c.Params("short_code")

	res, err := s.resolver.Resolve(c.UserContext(), code, c.Get("User-Agent"))
	if err != nil {
		slog.Error("resolve failed", "code", code, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Temporary failure, please retry"})
	}

	switch res.Outcome {
	case shortener.OutcomeFound:
		return c.Redirect(res.Target, fiber.StatusFound)
	case shortener.OutcomeExpired:
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "Short URL has expired"})
	default:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Short URL not found"})
	}
}

var expirationPresets = map[string]func(time.Time) time.Time{
	"1day":   func(t time.Time) time.Time { return t.AddDate(0, 0, 1) },
	"7days":  func(t time.Time) time.Time { return t.AddDate(0, 0, 7) },
	"30days": func(t time.Time) time.Time { return t.AddDate(0, 0, 30) },
	"1year":  func(t time.Time) time.Time { return t.AddDate(1, 0, 0) },
}

func expirationDate(preset string) (*time.Time, error) {
	if preset == "" || preset == "never" {
		return nil, nil
	}
	fn, ok := expirationPresets[preset]
	if !ok {
		return nil, fmt.Errorf("unknown expiration %q", preset)
	}
	t := fn(time.Now())
	return &t, nil
}

func (s *server) handleShorten(c *fiber.Ctx) error {
	var req struct {
		URL        string `json:"url"`
		CustomURL  string `json:"custom_url"`
		Expiration string `json:"expiration"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}
	if req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "URL cannot be empty"})
	}
	if err := safety.ValidateTarget(req.URL); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	expiresAt, err := expirationDate(req.Expiration)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if verdict := safety.Classify(c.UserContext(), s.classifier, req.URL); !verdict.Safe {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verdict.Reason})
	}

	var code string
	if req.CustomURL != "" {
		result, err := s.validator.Validate(c.UserContext(), req.CustomURL)
		if err != nil {
			slog.Error("alias validation failed", "err", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Temporary failure, please retry"})
		}
		switch result.Status {
		case alias.StatusInvalid:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": result.Reason})
		case alias.StatusTaken:
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":       "This custom URL is already taken",
				"suggestions": result.Suggestions,
			})
		}
		if result.Premium {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"error":      "This is a premium URL that requires payment",
				"is_premium": true,
			})
		}
		code = result.Normalized
	} else {
		code, err = s.allocator.Allocate(c.UserContext())
		if errors.Is(err, shortener.ErrAllocationExhausted) {
			slog.Error("short code space saturated")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Temporary failure, please retry"})
		}
		if err != nil {
			slog.Error("allocation failed", "err", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Temporary failure, please retry"})
		}
	}

	link, err := s.resolver.Commit(c.UserContext(), code, req.URL, expiresAt)
	if errors.Is(err, shortener.ErrConflict) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "This custom URL is already taken"})
	}
	if err != nil {
		slog.Error("commit failed", "code", code, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Temporary failure, please retry"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"short_url":  fmt.Sprintf("%s/%s", s.cfg.AppDomain, link.ShortCode),
		"expires_at": link.ExpiresAt,
	})
}

func (s *server) handleValidate(c *fiber.Ctx) error {
	var req struct {
		Alias string `json:"alias"`
	}
	if err := c.BodyParser(&req); err != nil || req.Alias == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Alias cannot be empty"})
	}

	result, err := s.validator.Validate(c.UserContext(), req.Alias)
	if err != nil {
		slog.Error("alias validation failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Temporary failure, please retry"})
	}

	switch result.Status {
	case alias.StatusValid:
		return c.JSON(fiber.Map{"valid": true, "alias": result.Normalized, "is_premium": result.Premium})
	case alias.StatusTaken:
		return c.JSON(fiber.Map{
			"valid":       false,
			"error":       "This custom URL is already taken",
			"suggestions": result.Suggestions,
		})
	default:
		return c.JSON(fiber.Map{"valid": false, "error": result.Reason})
	}
}

func (s *server) handleCreateKey(c *fiber.Ctx) error {
	var req struct {
		UserID      string `json:"user_id"`
		Tier        string `json:"tier"`
		CustomQuota int    `json:"custom_quota"`
	}
	if err := c.BodyParser(&req); err != nil || req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	tier := token.Tier(req.Tier)
	if !tier.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	apiKey, err := s.tokens.Issue(c.UserContext(), req.UserID, tier, req.CustomQuota)
	if err != nil {
		slog.Error("api key issue failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create API key"})
	}
	return c.JSON(fiber.Map{"api_key": apiKey})
}

func (s *server) handleRevokeKey(c *fiber.Ctx) error {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := c.BodyParser(&req); err != nil || req.APIKey == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "API key is required"})
	}

	if err := s.tokens.Revoke(c.UserContext(), req.APIKey); err != nil {
		slog.Error("api key revoke failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to revoke API key"})
	}
	return c.JSON(fiber.Map{"message": "API key revoked successfully"})
}

// handleStats reports the authoritative counter plus the pending delta still
// queued in the coordination store. The sum is eventually consistent.
func (s *server) handleStats(c *fiber.Ctx) error {
	code := c.Params("short_code")

	link, err := s.resolver.Links.FindByCode(c.UserContext(), code)
	if errors.Is(err, shortener.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Short URL not found"})
	}
	if err != nil {
		slog.Error("stats lookup failed", "code", code, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Temporary failure, please retry"})
	}

	var pending int64
	if raw, ok, err := s.coordStore.Get(c.UserContext(), shortener.ClicksKey(code)); err == nil && ok {
		pending, _ = strconv.ParseInt(raw, 10, 64)
	}

	return c.JSON(fiber.Map{
		"short_code":     link.ShortCode,
		"long_url":       link.LongURL,
		"clicks":         link.Clicks + pending,
		"created_at":     link.CreatedAt,
		"expires_at":     link.ExpiresAt,
		"last_access_at": link.LastAccessAt,
	})
}
