package format

import (
	"unicode/utf8"

	"relaybot/internal/model"
	"relaybot/pkg/tghtml"
)

// Telegram caption limits. Pure text messages get the wider limit; any
// media-attached caption is capped lower by the platform.
const (
	TextLimit    = 4096
	CaptionLimit = 1024
)

// Telegram albums carry at most 10 elements.
const albumMax = 10

const footerSep = "\n\n"

// Build renders one item into a delivery payload under the given effective
// settings.
//
// The caption budget is min(user limit or unlimited, platform limit) for
// the payload kind. Only the body is ever truncated (single ellipsis,
// counted inside the budget); the footer is never touched.
func Build(item model.Item, src model.Source, s model.FormatSettings) model.Payload {
	media := payloadMedia(item, s)

	kind := model.PayloadText
	switch {
	case len(media) > 1:
		kind = model.PayloadAlbum
	case len(media) == 1:
		kind = model.PayloadMedia
	}

	limit := TextLimit
	if kind != model.PayloadText {
		limit = CaptionLimit
	}
	if s.CaptionLimit > 0 && s.CaptionLimit < limit {
		limit = s.CaptionLimit
	}

	body := item.Text
	if s.Media == model.MediaOnly {
		// Media-only drops the caption body; the attribution footer is all
		// that remains.
		body = ""
	}

	footerHTML, footerLen := footer(item, src, s)

	budget := limit
	if footerLen > 0 {
		budget -= footerLen + len(footerSep)
	}
	if budget < 0 {
		budget = 0
	}
	if utf8.RuneCountInString(body) > budget {
		body = tghtml.TruncRunes(body, budget-1)
	}

	text := tghtml.JoinH(footerSep, tghtml.Esc(body), footerHTML).String()

	return model.Payload{
		Kind:      kind,
		Text:      text,
		Media:     media,
		Silent:    s.Notify == model.NotifySilent,
		NoPreview: s.Preview == model.PreviewOff,
	}
}

func payloadMedia(item model.Item, s model.FormatSettings) []model.MediaItem {
	if s.Media == model.MediaDisabled {
		return nil
	}
	media := item.Media
	if len(media) > albumMax {
		media = media[:albumMax]
	}
	return media
}

// footer renders the attribution footer: four source styles crossed with
// author visibility. Returns the safe HTML and its visible rune length.
func footer(item model.Item, src model.Source, s model.FormatSettings) (tghtml.H, int) {
	var attr tghtml.H
	visible := 0

	label := sourceLabel(item, src)
	switch s.Attribution {
	case model.AttrTitledLink:
		if item.Link != "" {
			attr = tghtml.Link(label, item.Link)
			visible = utf8.RuneCountInString(label)
		}
	case model.AttrLink:
		if item.Link != "" {
			attr = tghtml.Link("source", item.Link)
			visible = len("source")
		}
	case model.AttrBareURL:
		if item.Link != "" {
			attr = tghtml.Esc(item.Link)
			visible = utf8.RuneCountInString(item.Link)
		}
	case model.AttrNone:
	}

	var author tghtml.H
	if s.Author == model.AuthorShow && item.Author != "" {
		author = tghtml.I(item.Author)
	}

	const join = " | "
	switch {
	case attr != "" && author != "":
		return tghtml.H(author.String() + join + attr.String()),
			utf8.RuneCountInString(item.Author) + len(join) + visible
	case attr != "":
		return attr, visible
	case author != "":
		return author, utf8.RuneCountInString(item.Author)
	}
	return "", 0
}

// sourceLabel picks the display text for titled-link attribution: the item
// title when the upstream provides one, else a name derived from the source.
func sourceLabel(item model.Item, src model.Source) string {
	if item.Title != "" {
		return item.Title
	}
	switch src.Kind {
	case model.KindProfile:
		return "@" + src.Value
	case model.KindHashtag:
		return "#" + src.Value
	}
	return src.Value
}
