package alias

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/emranffl/minifyurl/internal/coord"
	"github.com/emranffl/minifyurl/internal/shortener"
)

type fakeLinks struct {
	existing map[string]bool
}

func (f *fakeLinks) Create(_ context.Context, link *shortener.ShortLink) error {
	if f.existing[link.ShortCode] {
		return shortener.ErrConflict
	}
	f.existing[link.ShortCode] = true
	return nil
}

func (f *fakeLinks) FindByCode(_ context.Context, code string) (*shortener.ShortLink, error) {
	if f.existing[code] {
		return &shortener.ShortLink{ShortCode: code}, nil
	}
	return nil, shortener.ErrNotFound
}

func (f *fakeLinks) IncrementClicks(context.Context, string, int64, time.Time) error { return nil }

func newTestValidator(existing ...string) *Validator {
	links := &fakeLinks{existing: make(map[string]bool)}
	for _, code := range existing {
		links.existing[code] = true
	}
	v := NewValidator(coord.NewMemoryStore(), links)
	v.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	v.randSuffix = func() string { return "x7q" }
	return v
}

func TestValidate_FormatRules(t *testing.T) {
	v := newTestValidator()
	ctx := context.Background()

	cases := []struct {
		alias  string
		reason string
	}{
		{"short", "at least 8"},
		{strings.Repeat("a", 33), "cannot exceed 32"},
		{"bad alias!", "can only contain"},
		{"aaaa-bbbb", "repeating"},
		{"12345678", "spam"},
		{"testuser123", "spam"},
		{"promo12345", "spam"},
		{"sometest42", "spam"},
	}
	for _, tc := range cases {
		res, err := v.Validate(ctx, tc.alias)
		if err != nil {
			t.Fatalf("Validate(%q): %v", tc.alias, err)
		}
		if res.Status != StatusInvalid {
			t.Fatalf("Validate(%q) status=%v, want Invalid", tc.alias, res.Status)
		}
		if !strings.Contains(res.Reason, tc.reason) {
			t.Fatalf("Validate(%q) reason=%q, want it to mention %q", tc.alias, res.Reason, tc.reason)
		}
	}
}

func TestValidate_ReservedWordsAreCaseFolded(t *testing.T) {
	v := newTestValidator()

	res, err := v.Validate(context.Background(), "DASHBOARD")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Status != StatusInvalid || !strings.Contains(res.Reason, "reserved") {
		t.Fatalf("expected reserved rejection, got %+v", res)
	}
}

func TestValidate_ValidAliasIsNormalized(t *testing.T) {
	v := newTestValidator()

	res, err := v.Validate(context.Background(), "My-Cool-Link")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Status != StatusValid {
		t.Fatalf("expected Valid, got %+v", res)
	}
	if res.Normalized != "my-cool-link" {
		t.Fatalf("expected lowercase normalization, got %q", res.Normalized)
	}
	if res.Premium {
		t.Fatalf("plain alias must not be premium")
	}
}

func TestValidate_PremiumIsOrthogonalToValidity(t *testing.T) {
	v := newTestValidator()

	res, err := v.Validate(context.Background(), "nike-deals")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Status != StatusValid {
		t.Fatalf("expected Valid, got %+v", res)
	}
	if !res.Premium {
		t.Fatalf("expected premium detection for brand substring")
	}
}

func TestValidate_TakenAliasGetsAvailableSuggestions(t *testing.T) {
	v := newTestValidator("my-cool-link", "my-cool-link-2")

	res, err := v.Validate(context.Background(), "my-cool-link")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Status != StatusTaken {
		t.Fatalf("expected Taken, got %+v", res)
	}
	if len(res.Suggestions) == 0 || len(res.Suggestions) > 3 {
		t.Fatalf("expected 1-3 suggestions, got %v", res.Suggestions)
	}
	for _, s := range res.Suggestions {
		if s == "my-cool-link-2" {
			t.Fatalf("taken variation must not be suggested")
		}
		if len(s) > MaxLength {
			t.Fatalf("suggestion %q exceeds max length", s)
		}
	}
}

func TestValidate_CommittedAliasTurnsTaken(t *testing.T) {
	links := &fakeLinks{existing: make(map[string]bool)}
	v := NewValidator(coord.NewMemoryStore(), links)
	ctx := context.Background()

	res, err := v.Validate(ctx, "launch-day")
	if err != nil || res.Status != StatusValid {
		t.Fatalf("expected Valid before commit, got %+v err=%v", res, err)
	}

	if err := links.Create(ctx, &shortener.ShortLink{ShortCode: res.Normalized, LongURL: "https://example.com"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	res, err = v.Validate(ctx, "launch-day")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Status != StatusTaken {
		t.Fatalf("expected Taken after commit, got %+v", res)
	}
}
