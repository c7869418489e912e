// Package alias validates caller-chosen identifiers. Aliases are case-folded
// to lowercase for storage and comparison; validation rules short-circuit in
// a fixed order before availability is consulted.
package alias

import (
	"context"
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/emranffl/minifyurl/internal/coord"
	"github.com/emranffl/minifyurl/internal/shortener"
)

const (
	MinLength      = 8
	MaxLength      = 32
	maxSuggestions = 3
)

// reservedWords cannot be claimed as aliases regardless of case.
var reservedWords = []string{
	"admin", "api", "auth", "login", "logout", "signup", "register",
	"dashboard", "settings", "profile", "privacy", "terms", "help",
	"support", "about", "contact", "premium", "pricing", "static",
	"public", "assets", "images", "js", "css", "fonts", "docs",
	"blog", "status", "health", "metrics", "debug", "test",
}

// premiumBrands flag an alias as premium. Orthogonal to validity: the core
// reports the flag and leaves the monetization decision to the caller.
var premiumBrands = []string{
	"apple", "google", "microsoft", "amazon", "facebook",
	"twitter", "instagram", "tiktok", "netflix", "spotify",
	"nike", "adidas", "samsung", "sony", "nintendo",
}

var (
	charsetRe   = regexp.MustCompile(`^[a-zA-Z0-9-_]+$`)
	allDigitsRe = regexp.MustCompile(`^[0-9]+$`)
	digitTailRe = regexp.MustCompile(`^[a-z]+[0-9]{4,}$`)
	testSpamRe  = regexp.MustCompile(`(^test.*[0-9]+$)|(test[0-9]*$)`)
)

type Status int

const (
	StatusValid Status = iota
	StatusInvalid
	StatusTaken
)

type Result struct {
	Status Status
	// Normalized is the lowercased alias to use for storage once valid.
	Normalized string
	Premium    bool
	// Reason is set for StatusInvalid, human-readable.
	Reason string
	// Suggestions accompany StatusTaken, available alternatives only.
	Suggestions []string
}

// Validator checks format rules and availability for custom aliases.
type Validator struct {
	Coord coord.Store
	Links shortener.LinkStore

	now        func() time.Time
	randSuffix func() string
}

func NewValidator(store coord.Store, links shortener.LinkStore) *Validator {
	return &Validator{Coord: store, Links: links, now: time.Now, randSuffix: randomSuffix}
}

// Validate applies the rule chain and then the availability check. A store
// failure during the availability check is returned as an error, never as a
// verdict.
func (v *Validator) Validate(ctx context.Context, candidate string) (Result, error) {
	if reason, ok := checkFormat(candidate); !ok {
		return Result{Status: StatusInvalid, Reason: reason}, nil
	}

	folded := strings.ToLower(candidate)
	premium := IsPremium(folded)

	free, err := shortener.Available(ctx, v.Coord, v.Links, folded)
	if err != nil {
		return Result{}, err
	}
	if !free {
		return Result{
			Status:      StatusTaken,
			Normalized:  folded,
			Premium:     premium,
			Suggestions: v.suggest(ctx, folded),
		}, nil
	}

	return Result{Status: StatusValid, Normalized: folded, Premium: premium}, nil
}

func checkFormat(candidate string) (string, bool) {
	if len(candidate) < MinLength {
		return fmt.Sprintf("custom alias must be at least %d characters", MinLength), false
	}
	if len(candidate) > MaxLength {
		return fmt.Sprintf("custom alias cannot exceed %d characters", MaxLength), false
	}
	if !charsetRe.MatchString(candidate) {
		return "custom alias can only contain letters, numbers, hyphens, and underscores", false
	}

	folded := strings.ToLower(candidate)
	for _, w := range reservedWords {
		if folded == w {
			return "this alias is reserved and cannot be used", false
		}
	}
	if hasRepeatingChars(candidate) {
		return "custom alias contains too many repeating characters", false
	}
	if isSpamPattern(folded) {
		return "custom alias matches common spam patterns", false
	}
	return "", true
}

// IsPremium reports whether the alias contains a premium brand name.
func IsPremium(alias string) bool {
	folded := strings.ToLower(alias)
	for _, brand := range premiumBrands {
		if strings.Contains(folded, brand) {
			return true
		}
	}
	return false
}

// hasRepeatingChars detects 4 or more identical consecutive characters.
// Hand-rolled because RE2 has no backreferences.
func hasRepeatingChars(s string) bool {
	run := 1
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1] {
			run++
			if run >= 4 {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

func isSpamPattern(folded string) bool {
	return allDigitsRe.MatchString(folded) ||
		digitTailRe.MatchString(folded) ||
		testSpamRe.MatchString(folded)
}

// suggest synthesizes up to three available variations of a taken alias.
// Availability errors on a variation just skip it; suggestions are advisory.
func (v *Validator) suggest(ctx context.Context, base string) []string {
	suffixes := []string{
		"-2", "-3", "-custom",
		fmt.Sprintf("%d", v.now().Year()),
		v.randSuffix(),
	}

	var out []string
	for _, suffix := range suffixes {
		s := base + suffix
		if len(s) > MaxLength {
			continue
		}
		free, err := shortener.Available(ctx, v.Coord, v.Links, s)
		if err != nil || !free {
			continue
		}
		out = append(out, s)
		if len(out) >= maxSuggestions {
			break
		}
	}
	return out
}

func randomSuffix() string {
	const chars = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 3)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = chars[int(b[i])%len(chars)]
	}
	return string(b)
}
