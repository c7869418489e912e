package shortener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// LinkStore is the record store contract. The relational database behind it
// is the system of record; the core never holds a ShortLink in memory beyond
// one operation.
type LinkStore interface {
	// Create inserts a new link. Returns ErrConflict if the code is taken.
	Create(ctx context.Context, link *ShortLink) error
	// FindByCode returns the link for a code, expired ones included.
	// Returns ErrNotFound when no row exists.
	FindByCode(ctx context.Context, code string) (*ShortLink, error)
	// IncrementClicks adds delta to the click counter and stamps the last
	// access. Best-effort accounting, callers treat failures as lossy.
	IncrementClicks(ctx context.Context, code string, delta int64, at time.Time) error
}

// GormLinkStore implements LinkStore on a gorm connection. Requires the
// connection to be opened with TranslateError so duplicate-key violations
// surface as gorm.ErrDuplicatedKey.
type GormLinkStore struct {
	db *gorm.DB
}

func NewGormLinkStore(db *gorm.DB) *GormLinkStore {
	return &GormLinkStore{db: db}
}

func (s *GormLinkStore) Create(ctx context.Context, link *ShortLink) error {
	err := s.db.WithContext(ctx).Create(link).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create link %s: %w", link.ShortCode, err)
	}
	return nil
}

func (s *GormLinkStore) FindByCode(ctx context.Context, code string) (*ShortLink, error) {
	var link ShortLink
	err := s.db.WithContext(ctx).Where("short_code = ?", code).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find link %s: %w", code, err)
	}
	return &link, nil
}

func (s *GormLinkStore) IncrementClicks(ctx context.Context, code string, delta int64, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&ShortLink{}).
		Where("short_code = ?", code).
		Updates(map[string]interface{}{
			"clicks":         gorm.Expr("clicks + ?", delta),
			"last_access_at": at,
		}).Error
	if err != nil {
		return fmt.Errorf("increment clicks %s: %w", code, err)
	}
	return nil
}
