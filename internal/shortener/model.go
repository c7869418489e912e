package shortener

import (
	"time"
)

// ShortLink is the system of record for one mapping. The code is immutable
// once committed; only the click counter and last access move afterwards.
// Expiry is a read-time check, expired rows are not physically removed.
type ShortLink struct {
	ID           int64      `gorm:"primaryKey;type:bigint" json:"id"`
	ShortCode    string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"short_code"`
	LongURL      string     `gorm:"type:text;not null" json:"long_url"`
	ExpiresAt    *time.Time `gorm:"index" json:"expires_at,omitempty"`
	Clicks       int64      `gorm:"not null;default:0" json:"clicks"`
	LastAccessAt *time.Time `json:"last_access_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Expired reports whether the link is past its expiry at the given instant.
// A nil ExpiresAt never expires.
func (l *ShortLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}
