package model

import (
	"strings"
	"time"
)

type SourceKind string

const (
	KindProfile SourceKind = "profile"
	KindHashtag SourceKind = "hashtag"
	KindFeed    SourceKind = "feed"
)

func (k SourceKind) Valid() bool {
	switch k {
	case KindProfile, KindHashtag, KindFeed:
		return true
	}
	return false
}

// MediaFilter restricts which fetched items a source delivers.
type MediaFilter string

const (
	FilterAll   MediaFilter = "all"
	FilterPhoto MediaFilter = "photo"
	FilterVideo MediaFilter = "video"
	FilterAlbum MediaFilter = "album"
)

// Allows reports whether an item of the given media type passes the filter.
// Text-only items always pass: a filter narrows media, it does not hide posts.
func (f MediaFilter) Allows(mt MediaType) bool {
	switch f {
	case "", FilterAll:
		return true
	case FilterPhoto:
		return mt == MediaPhoto || mt == MediaNone
	case FilterVideo:
		return mt == MediaVideo || mt == MediaNone
	case FilterAlbum:
		return mt == MediaAlbum || mt == MediaNone
	}
	return true
}

// Source is one configured upstream subscription owned by a Channel.
type Source struct {
	ID          string          `json:"id"`
	Kind        SourceKind      `json:"kind"`
	Value       string          `json:"value"`
	Enabled     bool            `json:"enabled"`
	MediaFilter MediaFilter     `json:"media_filter,omitempty"`
	Format      *FormatOverride `json:"format,omitempty"`
}

// SourceID derives the stable source identifier from kind and value.
// It must stay stable across restarts because ledger entries are keyed by it.
func SourceID(kind SourceKind, value string) string {
	return string(kind) + ":" + strings.ToLower(strings.TrimSpace(value))
}

// Channel is one delivery destination with its own cadence and defaults.
// Persisted as a single JSON document keyed by ID; the set of all ids is a
// separate index document (see internal/storage).
type Channel struct {
	ID              int64           `json:"id"`
	Title           string          `json:"title"`
	Enabled         bool            `json:"enabled"`
	IntervalMinutes int             `json:"interval_minutes"`
	LastCheck       time.Time       `json:"last_check"`
	Sources         []Source        `json:"sources"`
	Format          *FormatOverride `json:"format,omitempty"`
}

// Interval returns the effective polling cadence, clamped to floor.
func (c *Channel) Interval(floor time.Duration) time.Duration {
	iv := time.Duration(c.IntervalMinutes) * time.Minute
	if iv < floor {
		return floor
	}
	return iv
}

// Due reports whether the channel should be checked at now.
func (c *Channel) Due(now time.Time, floor time.Duration) bool {
	if !c.Enabled {
		return false
	}
	return now.Sub(c.LastCheck) >= c.Interval(floor)
}
