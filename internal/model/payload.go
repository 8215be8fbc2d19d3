package model

type PayloadKind string

const (
	PayloadText  PayloadKind = "text"
	PayloadMedia PayloadKind = "media"
	PayloadAlbum PayloadKind = "album"
)

// Payload is one ready-to-send platform message produced by the formatter.
// Text carries the full message body for text payloads and the caption for
// media payloads (attached to the first element of an album by convention).
type Payload struct {
	Kind      PayloadKind
	Text      string // HTML (parse mode HTML)
	Media     []MediaItem
	Silent    bool
	NoPreview bool
}
