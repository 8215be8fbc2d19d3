package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"relaybot/internal/model"
)

// Two known embedded-JSON shapes on public embed pages. Both carry the same
// timeline graph; they differ in how the page inlines it.
var (
	sharedDataRe     = regexp.MustCompile(`window\._sharedData\s*=\s*(\{.+\});`)
	additionalDataRe = regexp.MustCompile(`window\.__additionalDataLoaded\s*\(\s*[^,]+,\s*(\{.+\})\s*\)\s*;?`)
)

// scrapeEmbed fetches a public embed page and extracts items from whichever
// embedded-JSON shape the page carries. Tolerant by construction: both
// shapes are tried, script by script, and the first one that decodes into a
// non-empty timeline wins.
func (f *Fetcher) scrapeEmbed(ctx context.Context, cfg Config, pageURL string) ([]model.Item, error) {
	body, _, err := f.getBody(ctx, cfg, pageURL, false)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}

	var items []model.Item
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		for _, re := range []*regexp.Regexp{additionalDataRe, sharedDataRe} {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			if got := itemsFromEmbedJSON(cfg, m[1]); len(got) > 0 {
				items = got
				return false
			}
		}
		return true
	})

	if len(items) == 0 {
		return nil, errors.New("no embedded timeline data found")
	}
	return items, nil
}

// itemsFromEmbedJSON decodes one embedded blob. The timeline can sit under
// several roots depending on page vintage; probe the known ones.
func itemsFromEmbedJSON(cfg Config, blob string) []model.Item {
	var payload struct {
		EntryData struct {
			ProfilePage []struct {
				GraphQL struct {
					User userPayload `json:"user"`
				} `json:"graphql"`
			} `json:"ProfilePage"`
			TagPage []struct {
				GraphQL struct {
					Hashtag hashtagPayload `json:"hashtag"`
				} `json:"graphql"`
			} `json:"TagPage"`
		} `json:"entry_data"`
		GraphQL struct {
			User    userPayload    `json:"user"`
			Hashtag hashtagPayload `json:"hashtag"`
		} `json:"graphql"`
	}
	if err := json.Unmarshal([]byte(blob), &payload); err != nil {
		return nil
	}

	for _, p := range payload.EntryData.ProfilePage {
		if items := itemsFromTimeline(cfg, p.GraphQL.User.Timeline); len(items) > 0 {
			return items
		}
	}
	for _, p := range payload.EntryData.TagPage {
		if items := itemsFromTimeline(cfg, p.GraphQL.Hashtag.Timeline); len(items) > 0 {
			return items
		}
	}
	if items := itemsFromTimeline(cfg, payload.GraphQL.User.Timeline); len(items) > 0 {
		return items
	}
	return itemsFromTimeline(cfg, payload.GraphQL.Hashtag.Timeline)
}
