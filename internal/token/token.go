// Package token issues and checks opaque API keys. Keys live only in the
// coordination store under a fixed TTL, so stale keys self-expire even
// without explicit revocation.
package token

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/emranffl/minifyurl/internal/coord"
)

const (
	// Prefix makes keys recognizable in logs and configs.
	Prefix    = "mk_"
	keyPrefix = "apikey:"
	randLen   = 32

	// TTL is the fixed key lifetime.
	TTL = 30 * 24 * time.Hour
)

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

type Tier string

const (
	TierFree       Tier = "free"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPremium, TierEnterprise:
		return true
	}
	return false
}

// Claims is what a key resolves to. CustomQuota overrides the tier's
// request quota when non-zero.
type Claims struct {
	SubjectID   string `json:"subject_id"`
	Tier        Tier   `json:"tier"`
	CustomQuota int    `json:"custom_quota,omitempty"`
}

type Store struct {
	Coord coord.Store
}

func NewStore(store coord.Store) *Store {
	return &Store{Coord: store}
}

// Issue mints a new key for the subject and stores its claims.
func (s *Store) Issue(ctx context.Context, subjectID string, tier Tier, customQuota int) (string, error) {
	if !tier.Valid() {
		return "", fmt.Errorf("invalid tier %q", tier)
	}

	tok := newToken()
	body, err := json.Marshal(Claims{SubjectID: subjectID, Tier: tier, CustomQuota: customQuota})
	if err != nil {
		return "", err
	}
	if err := s.Coord.SetEx(ctx, keyPrefix+tok, string(body), TTL); err != nil {
		return "", err
	}
	return tok, nil
}

// Lookup returns the claims for a key, or nil when the key is unknown,
// revoked, or expired.
func (s *Store) Lookup(ctx context.Context, tok string) (*Claims, error) {
	raw, ok, err := s.Coord.Get(ctx, keyPrefix+tok)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var claims Claims
	if err := json.Unmarshal([]byte(raw), &claims); err != nil {
		return nil, fmt.Errorf("corrupt api key record: %w", err)
	}
	return &claims, nil
}

// Revoke deletes the key immediately. No tombstone, no grace period.
func (s *Store) Revoke(ctx context.Context, tok string) error {
	return s.Coord.Del(ctx, keyPrefix+tok)
}

func newToken() string {
	b := make([]byte, randLen)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = tokenAlphabet[int(b[i])%len(tokenAlphabet)]
	}
	return Prefix + string(b)
}
