package format

import (
	"strings"
	"testing"

	"relaybot/internal/model"
)

func ptrNotify(v model.NotifyMode) *model.NotifyMode                { return &v }
func ptrMedia(v model.MediaMode) *model.MediaMode                   { return &v }
func ptrAuthor(v model.AuthorMode) *model.AuthorMode                { return &v }
func ptrAttr(v model.AttributionStyle) *model.AttributionStyle      { return &v }
func ptrPreview(v model.PreviewMode) *model.PreviewMode             { return &v }
func ptrInt(v int) *int                                             { return &v }

func TestResolveCascade(t *testing.T) {
	hard := HardDefaults()

	tests := []struct {
		name    string
		channel *model.FormatOverride
		source  *model.FormatOverride
		want    model.FormatSettings
	}{
		{
			name: "no layers yields hard defaults",
			want: hard,
		},
		{
			name:    "channel layer overrides",
			channel: &model.FormatOverride{Notify: ptrNotify(model.NotifySilent), CaptionLimit: ptrInt(200)},
			want: model.FormatSettings{
				Notify: model.NotifySilent, Media: hard.Media, Author: hard.Author,
				Attribution: hard.Attribution, Preview: hard.Preview, CaptionLimit: 200,
			},
		},
		{
			name:    "source wins over channel",
			channel: &model.FormatOverride{Notify: ptrNotify(model.NotifySilent), Media: ptrMedia(model.MediaDisabled)},
			source:  &model.FormatOverride{Notify: ptrNotify(model.NotifyOn), Attribution: ptrAttr(model.AttrNone)},
			want: model.FormatSettings{
				Notify: model.NotifyOn, Media: model.MediaDisabled, Author: hard.Author,
				Attribution: model.AttrNone, Preview: hard.Preview, CaptionLimit: 0,
			},
		},
		{
			name:   "unset fields fall through to hard defaults",
			source: &model.FormatOverride{Author: ptrAuthor(model.AuthorHide), Preview: ptrPreview(model.PreviewOn)},
			want: model.FormatSettings{
				Notify: hard.Notify, Media: hard.Media, Author: model.AuthorHide,
				Attribution: hard.Attribution, Preview: model.PreviewOn, CaptionLimit: 0,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(hard, tt.channel, tt.source)
			if got != tt.want {
				t.Fatalf("Resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBuildKinds(t *testing.T) {
	src := model.Source{Kind: model.KindFeed, Value: "https://example.org/feed"}
	photo := model.MediaItem{Kind: model.MediaKindPhoto, URL: "https://cdn/x.jpg"}

	tests := []struct {
		name     string
		item     model.Item
		settings model.FormatSettings
		wantKind model.PayloadKind
		wantLen  int
	}{
		{
			name:     "no media is text",
			item:     model.Item{ID: "1", Text: "hello"},
			settings: HardDefaults(),
			wantKind: model.PayloadText,
		},
		{
			name:     "one media element",
			item:     model.Item{ID: "2", Text: "hello", Media: []model.MediaItem{photo}},
			settings: HardDefaults(),
			wantKind: model.PayloadMedia,
			wantLen:  1,
		},
		{
			name:     "several media elements form an album",
			item:     model.Item{ID: "3", Media: []model.MediaItem{photo, photo, photo}},
			settings: HardDefaults(),
			wantKind: model.PayloadAlbum,
			wantLen:  3,
		},
		{
			name: "disabled media degrades to text",
			item: model.Item{ID: "4", Text: "hello", Media: []model.MediaItem{photo, photo}},
			settings: func() model.FormatSettings {
				s := HardDefaults()
				s.Media = model.MediaDisabled
				return s
			}(),
			wantKind: model.PayloadText,
		},
		{
			name: "albums cap at ten elements",
			item: model.Item{ID: "5", Media: func() []model.MediaItem {
				out := make([]model.MediaItem, 12)
				for i := range out {
					out[i] = photo
				}
				return out
			}()},
			settings: HardDefaults(),
			wantKind: model.PayloadAlbum,
			wantLen:  10,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Build(tt.item, src, tt.settings)
			if p.Kind != tt.wantKind {
				t.Fatalf("kind = %q, want %q", p.Kind, tt.wantKind)
			}
			if len(p.Media) != tt.wantLen {
				t.Fatalf("media len = %d, want %d", len(p.Media), tt.wantLen)
			}
		})
	}
}

func TestBuildFlags(t *testing.T) {
	s := HardDefaults()
	s.Notify = model.NotifySilent
	s.Preview = model.PreviewOff
	p := Build(model.Item{ID: "1", Text: "x"}, model.Source{}, s)
	if !p.Silent {
		t.Error("expected silent payload")
	}
	if !p.NoPreview {
		t.Error("expected previews disabled")
	}

	s.Notify = model.NotifyOn
	s.Preview = model.PreviewOn
	p = Build(model.Item{ID: "1", Text: "x"}, model.Source{}, s)
	if p.Silent || p.NoPreview {
		t.Errorf("unexpected flags: silent=%v nopreview=%v", p.Silent, p.NoPreview)
	}
}

func TestBuildMediaOnlyDropsBody(t *testing.T) {
	s := HardDefaults()
	s.Media = model.MediaOnly
	s.Attribution = model.AttrNone
	s.Author = model.AuthorHide
	item := model.Item{
		ID:    "1",
		Text:  "a long caption that should vanish",
		Media: []model.MediaItem{{Kind: model.MediaKindPhoto, URL: "https://cdn/x.jpg"}},
	}
	p := Build(item, model.Source{}, s)
	if p.Text != "" {
		t.Fatalf("text = %q, want empty", p.Text)
	}
	if len(p.Media) != 1 {
		t.Fatalf("media len = %d, want 1", len(p.Media))
	}
}

func TestFooterMatrix(t *testing.T) {
	item := model.Item{
		ID:     "1",
		Link:   "https://example.org/p/abc/",
		Author: "alice",
		Text:   "body",
	}
	src := model.Source{Kind: model.KindProfile, Value: "alice"}

	tests := []struct {
		name   string
		attr   model.AttributionStyle
		author model.AuthorMode
		want   string
	}{
		{
			name: "titled link with author", attr: model.AttrTitledLink, author: model.AuthorShow,
			want: "body\n\n<i>alice</i> | <a href=\"https://example.org/p/abc/\">@alice</a>",
		},
		{
			name: "titled link without author", attr: model.AttrTitledLink, author: model.AuthorHide,
			want: "body\n\n<a href=\"https://example.org/p/abc/\">@alice</a>",
		},
		{
			name: "plain link", attr: model.AttrLink, author: model.AuthorHide,
			want: "body\n\n<a href=\"https://example.org/p/abc/\">source</a>",
		},
		{
			name: "bare url", attr: model.AttrBareURL, author: model.AuthorHide,
			want: "body\n\nhttps://example.org/p/abc/",
		},
		{
			name: "no attribution with author", attr: model.AttrNone, author: model.AuthorShow,
			want: "body\n\n<i>alice</i>",
		},
		{
			name: "nothing at all", attr: model.AttrNone, author: model.AuthorHide,
			want: "body",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := HardDefaults()
			s.Attribution = tt.attr
			s.Author = tt.author
			p := Build(item, src, s)
			if p.Text != tt.want {
				t.Fatalf("text = %q, want %q", p.Text, tt.want)
			}
		})
	}
}

func TestFooterLabelPrefersTitle(t *testing.T) {
	s := HardDefaults()
	s.Author = model.AuthorHide
	item := model.Item{ID: "1", Link: "https://x/", Title: "Headline", Text: "body"}
	p := Build(item, model.Source{Kind: model.KindHashtag, Value: "tag"}, s)
	want := "body\n\n<a href=\"https://x/\">Headline</a>"
	if p.Text != want {
		t.Fatalf("text = %q, want %q", p.Text, want)
	}
}

func TestTruncationBodyOnly(t *testing.T) {
	t.Run("without footer the body fills the whole budget", func(t *testing.T) {
		s := HardDefaults()
		s.Attribution = model.AttrNone
		s.Author = model.AuthorHide
		s.CaptionLimit = 20

		item := model.Item{ID: "1", Text: strings.Repeat("a", 30)}
		p := Build(item, model.Source{}, s)
		want := strings.Repeat("a", 19) + "…"
		if p.Text != want {
			t.Fatalf("text = %q, want %q", p.Text, want)
		}
	})

	t.Run("footer is never truncated", func(t *testing.T) {
		s := HardDefaults()
		s.Attribution = model.AttrBareURL
		s.Author = model.AuthorHide
		s.CaptionLimit = 30

		// footer "http://x/" is 9 runes; separator counts 2 more, so the
		// body budget is 19 runes including the ellipsis.
		item := model.Item{ID: "1", Link: "http://x/", Text: strings.Repeat("a", 25)}
		p := Build(item, model.Source{}, s)
		want := strings.Repeat("a", 18) + "…\n\nhttp://x/"
		if p.Text != want {
			t.Fatalf("text = %q, want %q", p.Text, want)
		}
	})

	t.Run("body under budget is untouched", func(t *testing.T) {
		s := HardDefaults()
		s.Attribution = model.AttrNone
		s.Author = model.AuthorHide
		s.CaptionLimit = 20

		item := model.Item{ID: "1", Text: strings.Repeat("a", 20)}
		p := Build(item, model.Source{}, s)
		if p.Text != item.Text {
			t.Fatalf("text = %q, want untouched body", p.Text)
		}
	})

	t.Run("media payloads use the caption limit", func(t *testing.T) {
		s := HardDefaults()
		s.Attribution = model.AttrNone
		s.Author = model.AuthorHide

		item := model.Item{
			ID:    "1",
			Text:  strings.Repeat("a", 2000),
			Media: []model.MediaItem{{Kind: model.MediaKindPhoto, URL: "https://cdn/x.jpg"}},
		}
		p := Build(item, model.Source{}, s)
		want := strings.Repeat("a", CaptionLimit-1) + "…"
		if p.Text != want {
			t.Fatalf("caption len = %d, want %d runes", len(p.Text), CaptionLimit)
		}
	})
}
