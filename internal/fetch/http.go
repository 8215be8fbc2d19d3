package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"relaybot/internal/model"
)

// maxBodyBytes bounds upstream response bodies; the structured payloads we
// consume are far below this.
const maxBodyBytes = 8 << 20

func (f *Fetcher) newRequest(ctx context.Context, cfg Config, url string, withSession bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	if cfg.AppID != "" {
		req.Header.Set("X-App-ID", cfg.AppID)
	}
	if withSession && cfg.SessionCookie != "" {
		req.Header.Set("Cookie", cfg.SessionCookie)
	}
	return req, nil
}

// getBody fetches url and returns the (bounded) body and content type.
// A non-2xx status is returned as a TierError carrying the status code.
func (f *Fetcher) getBody(ctx context.Context, cfg Config, url string, withSession bool) ([]byte, string, error) {
	req, err := f.newRequest(ctx, cfg, url, withSession)
	if err != nil {
		return nil, "", err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, "", model.TierError{Message: "timeout"}
		}
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", err
	}
	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode/100 != 2 {
		return nil, ct, model.TierError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return body, ct, nil
}

// getJSON fetches url and decodes a JSON payload into out.
//
// An HTML response where JSON was expected is the upstream's login/consent
// redirect: report it as a tier failure instead of letting the decoder
// produce a confusing syntax error.
func (f *Fetcher) getJSON(ctx context.Context, cfg Config, url string, withSession bool, out any) error {
	body, ct, err := f.getBody(ctx, cfg, url, withSession)
	if err != nil {
		return err
	}
	if looksLikeHTML(ct, body) {
		return model.TierError{Message: "login redirect (html response)"}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

func looksLikeHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	head := strings.ToLower(strings.TrimSpace(string(body[:min(len(body), 64)])))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}
