package model

type NotifyMode string

const (
	NotifyOn     NotifyMode = "notify"
	NotifySilent NotifyMode = "silent"
)

type MediaMode string

const (
	MediaEnabled  MediaMode = "enable"
	MediaDisabled MediaMode = "disable"
	MediaOnly     MediaMode = "only"
)

type AuthorMode string

const (
	AuthorShow AuthorMode = "show"
	AuthorHide AuthorMode = "hide"
)

// AttributionStyle selects how the footer links back to the source.
type AttributionStyle string

const (
	AttrTitledLink AttributionStyle = "titled-link"
	AttrLink       AttributionStyle = "link"
	AttrBareURL    AttributionStyle = "url"
	AttrNone       AttributionStyle = "none"
)

type PreviewMode string

const (
	PreviewOn  PreviewMode = "on"
	PreviewOff PreviewMode = "off"
)

// FormatSettings is the fully-merged presentation configuration.
// Derived, never persisted: only the override layers below are stored.
type FormatSettings struct {
	Notify       NotifyMode
	Media        MediaMode
	Author       AuthorMode
	Attribution  AttributionStyle
	Preview      PreviewMode
	CaptionLimit int // 0 = unlimited (platform limit still applies)
}

// FormatOverride is one override layer. Nil fields inherit from the layer
// below; CaptionLimit uses a pointer so "override to unlimited" (0) stays
// distinguishable from "not set".
type FormatOverride struct {
	Notify       *NotifyMode       `json:"notify,omitempty"`
	Media        *MediaMode        `json:"media,omitempty"`
	Author       *AuthorMode       `json:"author,omitempty"`
	Attribution  *AttributionStyle `json:"attribution,omitempty"`
	Preview      *PreviewMode      `json:"preview,omitempty"`
	CaptionLimit *int              `json:"caption_limit,omitempty"`
}
