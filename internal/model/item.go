package model

import "fmt"

type MediaType string

const (
	MediaNone  MediaType = "none"
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
	MediaAlbum MediaType = "album"
)

type MediaKind string

const (
	MediaKindPhoto MediaKind = "photo"
	MediaKindVideo MediaKind = "video"
)

// MediaItem is one media element of an item, referenced by remote URL.
type MediaItem struct {
	Kind  MediaKind
	URL   string
	Thumb string
}

// Item is the canonical fetched unit. It is transient: it exists only for
// the duration of one fetch→deliver cycle and is never persisted.
//
// ID must be invariant across repeated fetches of the same underlying post
// (guid, shortcode, link or content hash, never a random value), because
// the delivery ledger dedups on it.
type Item struct {
	ID        string
	Link      string
	Title     string
	Text      string
	Author    string
	Published int64 // unix seconds
	MediaType MediaType
	Media     []MediaItem
}

// DeriveMediaType derives the item media type from its media list:
// 0 elements → none, 1 → photo/video by kind, >1 → album.
func DeriveMediaType(media []MediaItem) MediaType {
	switch len(media) {
	case 0:
		return MediaNone
	case 1:
		if media[0].Kind == MediaKindVideo {
			return MediaVideo
		}
		return MediaPhoto
	}
	return MediaAlbum
}

// TierError records the failure of one fetch tier. Purely diagnostic:
// aggregated per fetch attempt, surfaced to logs and operator alerts,
// never persisted.
type TierError struct {
	Tier    string
	Status  int
	Message string
}

func (e TierError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: http %d: %s", e.Tier, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Tier, e.Message)
}
