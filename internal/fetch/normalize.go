package fetch

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"relaybot/internal/model"
)

// itemsFromTimeline normalizes a platform timeline payload. Edges arrive
// newest-first and stay that way.
func itemsFromTimeline(cfg Config, tl timeline) []model.Item {
	items := make([]model.Item, 0, len(tl.Edges))
	for _, e := range tl.Edges {
		items = append(items, itemFromNode(cfg, e.Node))
	}
	return items
}

func itemFromNode(cfg Config, n mediaNode) model.Item {
	var media []model.MediaItem
	if len(n.Sidecar.Edges) > 1 {
		for _, e := range n.Sidecar.Edges {
			m := model.MediaItem{Kind: model.MediaKindPhoto, URL: e.Node.DisplayURL}
			if e.Node.IsVideo {
				m.Kind = model.MediaKindVideo
				m.URL = e.Node.VideoURL
				m.Thumb = e.Node.DisplayURL
			}
			media = append(media, m)
		}
	} else if n.IsVideo {
		media = append(media, model.MediaItem{Kind: model.MediaKindVideo, URL: n.VideoURL, Thumb: n.DisplayURL})
	} else if n.DisplayURL != "" {
		media = append(media, model.MediaItem{Kind: model.MediaKindPhoto, URL: n.DisplayURL, Thumb: n.ThumbnailSrc})
	}

	var text string
	if len(n.Caption.Edges) > 0 {
		text = n.Caption.Edges[0].Node.Text
	}

	link := ""
	if n.Shortcode != "" {
		link = cfg.APIBase + "/p/" + n.Shortcode + "/"
	}

	it := model.Item{
		ID:        firstNonEmpty(n.Shortcode, n.ID),
		Link:      link,
		Text:      text,
		Author:    n.Owner.Username,
		Published: n.TakenAt,
		Media:     media,
	}
	if it.ID == "" {
		it.ID = contentHash(link, text)
	}
	it.MediaType = model.DeriveMediaType(media)
	return it
}

// itemsFromFeed normalizes RSS/Atom entries (generic feeds and mirror
// instances). Feeds are assumed newest-first, which gofeed preserves.
func itemsFromFeed(feed *gofeed.Feed, pageSize int) []model.Item {
	if feed == nil {
		return nil
	}
	n := len(feed.Items)
	if pageSize > 0 && n > pageSize {
		n = pageSize
	}
	items := make([]model.Item, 0, n)
	for _, fi := range feed.Items[:n] {
		items = append(items, itemFromFeedEntry(fi))
	}
	return items
}

func itemFromFeedEntry(fi *gofeed.Item) model.Item {
	body := fi.Content
	if body == "" {
		body = fi.Description
	}

	it := model.Item{
		ID:    firstNonEmpty(fi.GUID, fi.Link),
		Link:  fi.Link,
		Title: fi.Title,
		Text:  ExtractCaption(body),
		Media: mediaFromFeedEntry(fi, body),
	}
	if fi.Author != nil {
		it.Author = fi.Author.Name
	}
	if fi.PublishedParsed != nil {
		it.Published = fi.PublishedParsed.Unix()
	} else if fi.UpdatedParsed != nil {
		it.Published = fi.UpdatedParsed.Unix()
	} else {
		it.Published = time.Now().Unix()
	}
	if it.ID == "" {
		it.ID = contentHash(fi.Title, body)
	}
	it.MediaType = model.DeriveMediaType(it.Media)
	return it
}

func mediaFromFeedEntry(fi *gofeed.Item, body string) []model.MediaItem {
	var media []model.MediaItem
	for _, enc := range fi.Enclosures {
		switch {
		case strings.HasPrefix(enc.Type, "image/"):
			media = append(media, model.MediaItem{Kind: model.MediaKindPhoto, URL: enc.URL})
		case strings.HasPrefix(enc.Type, "video/"):
			media = append(media, model.MediaItem{Kind: model.MediaKindVideo, URL: enc.URL})
		}
	}
	if len(media) > 0 {
		return media
	}
	// Mirror feeds usually inline media in the rendered description instead
	// of declaring enclosures.
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}
	doc.Find("video").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok {
			src, ok = sel.Find("source").Attr("src")
		}
		if ok && src != "" {
			media = append(media, model.MediaItem{
				Kind:  model.MediaKindVideo,
				URL:   src,
				Thumb: sel.AttrOr("poster", ""),
			})
		}
	})
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok && src != "" {
			media = append(media, model.MediaItem{Kind: model.MediaKindPhoto, URL: src})
		}
	})
	return media
}

// ExtractCaption pulls the caption text out of a rendered HTML body.
//
// Mirror feeds concatenate a rendered media block with the caption, so the
// caption is the content after the last paragraph separator. This is a
// best-effort heuristic over unstructured markup: it is isolated here so
// upstream format drift only requires replacing this function.
func ExtractCaption(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	if !strings.Contains(body, "<") {
		return body
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return strings.TrimSpace(body)
	}
	// Only split when the body actually carries a rendered media block;
	// plain article bodies keep all their paragraphs.
	if doc.Find("img, video").Length() > 0 {
		if ps := doc.Find("p"); ps.Length() > 0 {
			if txt := strings.TrimSpace(ps.Last().Text()); txt != "" {
				return txt
			}
		}
	}
	return strings.TrimSpace(doc.Text())
}

// contentHash is the last-resort item identity: stable for identical
// content, which is what dedup needs. Never use a random value here.
func contentHash(parts ...string) string {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("h:%016x", h.Sum64())
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
