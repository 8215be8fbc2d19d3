package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"relaybot/internal/model"
)

// The platform's timeline graph shape, shared by the api, query and form
// tiers (they differ in auth and query mechanism, not payload structure).
type mediaNode struct {
	ID           string `json:"id"`
	Shortcode    string `json:"shortcode"`
	DisplayURL   string `json:"display_url"`
	ThumbnailSrc string `json:"thumbnail_src"`
	IsVideo      bool   `json:"is_video"`
	VideoURL     string `json:"video_url"`
	TakenAt      int64  `json:"taken_at_timestamp"`
	Owner        struct {
		Username string `json:"username"`
	} `json:"owner"`
	Caption struct {
		Edges []struct {
			Node struct {
				Text string `json:"text"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"edge_media_to_caption"`
	Sidecar struct {
		Edges []struct {
			Node struct {
				DisplayURL string `json:"display_url"`
				IsVideo    bool   `json:"is_video"`
				VideoURL   string `json:"video_url"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"edge_sidecar_to_children"`
}

type timeline struct {
	Edges []struct {
		Node mediaNode `json:"node"`
	} `json:"edges"`
}

type userPayload struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Timeline timeline `json:"edge_owner_to_timeline_media"`
}

type hashtagPayload struct {
	Name     string   `json:"name"`
	Timeline timeline `json:"edge_hashtag_to_media"`
}

// ---- profile tiers ----

// Tier 1: the platform's structured web API. Fastest and most complete but
// needs valid session credentials; without them the response is usually an
// HTML login redirect, which getJSON reports as a tier failure.
func (f *Fetcher) tierProfileAPI(ctx context.Context, cfg Config, username string) ([]model.Item, error) {
	u := fmt.Sprintf("%s/api/v1/users/web_profile_info/?username=%s", cfg.APIBase, url.QueryEscape(username))
	var payload struct {
		Data struct {
			User userPayload `json:"user"`
		} `json:"data"`
	}
	if err := f.getJSON(ctx, cfg, u, true, &payload); err != nil {
		return nil, err
	}
	f.cacheResolved(ctx, cfg, username, payload.Data.User.ID)
	return itemsFromTimeline(cfg, payload.Data.User.Timeline), nil
}

// Tier 2: the graph query endpoint. Different query mechanism (internal id
// + query hash instead of username), sometimes reachable when tier 1 is not.
func (f *Fetcher) tierProfileQuery(ctx context.Context, cfg Config, username string) ([]model.Item, error) {
	id, err := f.resolveID(ctx, cfg, "user:"+username, username)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", username, err)
	}
	vars, _ := json.Marshal(map[string]any{"id": id, "first": cfg.PageSize})
	u := fmt.Sprintf("%s/graphql/query/?query_hash=%s&variables=%s",
		cfg.APIBase, profileQueryHash, url.QueryEscape(string(vars)))
	var payload struct {
		Data struct {
			User userPayload `json:"user"`
		} `json:"data"`
	}
	if err := f.getJSON(ctx, cfg, u, true, &payload); err != nil {
		return nil, err
	}
	return itemsFromTimeline(cfg, payload.Data.User.Timeline), nil
}

// Tier 3: the legacy inline-JSON form of the profile page.
func (f *Fetcher) tierProfileForm(ctx context.Context, cfg Config, username string) ([]model.Item, error) {
	u := fmt.Sprintf("%s/%s/?__a=1&__d=dis", cfg.APIBase, url.PathEscape(username))
	var payload struct {
		GraphQL struct {
			User userPayload `json:"user"`
		} `json:"graphql"`
	}
	if err := f.getJSON(ctx, cfg, u, false, &payload); err != nil {
		return nil, err
	}
	return itemsFromTimeline(cfg, payload.GraphQL.User.Timeline), nil
}

// Tier 4: public mirror instances serving the profile as a feed.
func (f *Fetcher) tierProfileMirror(ctx context.Context, cfg Config, username string) ([]model.Item, error) {
	return f.mirrorFeed(ctx, cfg, "/u/"+url.PathEscape(username)+"/rss.xml")
}

// Tier 5: scrape the public embed page.
func (f *Fetcher) tierProfileEmbed(ctx context.Context, cfg Config, username string) ([]model.Item, error) {
	u := fmt.Sprintf("%s/%s/embed/", cfg.APIBase, url.PathEscape(username))
	return f.scrapeEmbed(ctx, cfg, u)
}

// ---- hashtag tiers ----

func (f *Fetcher) tierHashtagAPI(ctx context.Context, cfg Config, tag string) ([]model.Item, error) {
	u := fmt.Sprintf("%s/api/v1/tags/web_info/?tag_name=%s", cfg.APIBase, url.QueryEscape(tag))
	var payload struct {
		Data struct {
			Hashtag hashtagPayload `json:"hashtag"`
		} `json:"data"`
	}
	if err := f.getJSON(ctx, cfg, u, true, &payload); err != nil {
		return nil, err
	}
	return itemsFromTimeline(cfg, payload.Data.Hashtag.Timeline), nil
}

func (f *Fetcher) tierHashtagQuery(ctx context.Context, cfg Config, tag string) ([]model.Item, error) {
	vars, _ := json.Marshal(map[string]any{"tag_name": tag, "first": cfg.PageSize})
	u := fmt.Sprintf("%s/graphql/query/?query_hash=%s&variables=%s",
		cfg.APIBase, hashtagQueryHash, url.QueryEscape(string(vars)))
	var payload struct {
		Data struct {
			Hashtag hashtagPayload `json:"hashtag"`
		} `json:"data"`
	}
	if err := f.getJSON(ctx, cfg, u, true, &payload); err != nil {
		return nil, err
	}
	return itemsFromTimeline(cfg, payload.Data.Hashtag.Timeline), nil
}

func (f *Fetcher) tierHashtagForm(ctx context.Context, cfg Config, tag string) ([]model.Item, error) {
	u := fmt.Sprintf("%s/explore/tags/%s/?__a=1&__d=dis", cfg.APIBase, url.PathEscape(tag))
	var payload struct {
		GraphQL struct {
			Hashtag hashtagPayload `json:"hashtag"`
		} `json:"graphql"`
	}
	if err := f.getJSON(ctx, cfg, u, false, &payload); err != nil {
		return nil, err
	}
	return itemsFromTimeline(cfg, payload.GraphQL.Hashtag.Timeline), nil
}

func (f *Fetcher) tierHashtagMirror(ctx context.Context, cfg Config, tag string) ([]model.Item, error) {
	return f.mirrorFeed(ctx, cfg, "/t/"+url.PathEscape(tag)+"/rss.xml")
}

func (f *Fetcher) tierHashtagEmbed(ctx context.Context, cfg Config, tag string) ([]model.Item, error) {
	u := fmt.Sprintf("%s/explore/tags/%s/embed/", cfg.APIBase, url.PathEscape(tag))
	return f.scrapeEmbed(ctx, cfg, u)
}

// Query hashes for the graph query tier. These identify the persisted
// timeline queries and are stable per query shape, not per user.
const (
	profileQueryHash = "003056d32c2554def87228bc3fd9668a"
	hashtagQueryHash = "9b498c08113f1e09617a1703c22b2f32"
)
