// Package deliver sends formatted payloads through a transport, degrading
// step by step instead of failing outright.
//
// The ladder for media payloads:
//
//  1. hand the platform the remote asset URL and let it fetch
//  2. download the asset ourselves and re-upload raw bytes
//  3. send a text message that links the asset, with previews enabled so
//     the chat still shows a thumbnail
//
// Rung 2 is attempted only when the platform signals it could not fetch the
// URL; rung 3 catches everything else short of a rate limit. A rate limit is
// never degraded around, it aborts the whole batch.
package deliver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"relaybot/internal/model"
	"relaybot/internal/transport"
	"relaybot/pkg/logx"
	"relaybot/pkg/tghtml"
)

type Status int

const (
	StatusSent Status = iota
	StatusDegraded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusDegraded:
		return "degraded"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

type Config struct {
	// MaxUploadBytes caps rung 2 downloads. Assets larger than this skip
	// straight to the degraded rung.
	MaxUploadBytes int64

	UserAgent       string
	DownloadTimeout time.Duration
}

const (
	defaultMaxUpload       = 50 << 20
	defaultDownloadTimeout = 30 * time.Second
)

type Deliverer struct {
	cfg    Config
	sender transport.Sender
	http   *http.Client
	log    logx.Logger
}

func New(cfg Config, sender transport.Sender, log logx.Logger) *Deliverer {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = defaultDownloadTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Deliverer{
		cfg:    cfg,
		sender: sender,
		http:   &http.Client{Timeout: cfg.DownloadTimeout},
		log:    log,
	}
}

// Deliver sends one payload to one chat. On StatusFailed the returned error
// explains the terminal failure; a rate-limit error is returned as-is so the
// caller can stop the batch.
func (d *Deliverer) Deliver(ctx context.Context, to transport.ChatTarget, p model.Payload) (Status, error) {
	opt := &transport.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: p.NoPreview,
		Silent:         p.Silent,
	}

	switch p.Kind {
	case model.PayloadText:
		_, err := d.sender.SendText(ctx, to, p.Text, opt)
		if err != nil {
			return StatusFailed, err
		}
		return StatusSent, nil
	case model.PayloadMedia:
		return d.deliverMedia(ctx, to, p, opt)
	case model.PayloadAlbum:
		return d.deliverAlbum(ctx, to, p, opt)
	}
	return StatusFailed, fmt.Errorf("unknown payload kind %q", p.Kind)
}

func (d *Deliverer) deliverMedia(ctx context.Context, to transport.ChatTarget, p model.Payload, opt *transport.SendOptions) (Status, error) {
	m := p.Media[0]

	_, err := d.sender.SendMedia(ctx, to, transport.File{Kind: m.Kind, URL: m.URL}, p.Text, opt)
	if err == nil {
		return StatusSent, nil
	}
	if transport.IsRateLimited(err) {
		return StatusFailed, err
	}

	if errors.Is(err, transport.ErrBadRemoteURL) {
		d.log.Debug("direct send refused, re-uploading",
			logx.String("url", m.URL), logx.Err(err))
		if st, rerr := d.reupload(ctx, to, m, p.Text, opt); rerr == nil {
			return st, nil
		} else if transport.IsRateLimited(rerr) {
			return StatusFailed, rerr
		} else {
			err = rerr
		}
	}

	d.log.Debug("media send degraded to text", logx.Err(err))
	return d.degraded(ctx, to, p, opt)
}

func (d *Deliverer) deliverAlbum(ctx context.Context, to transport.ChatTarget, p model.Payload, opt *transport.SendOptions) (Status, error) {
	files := make([]transport.File, 0, len(p.Media))
	for _, m := range p.Media {
		files = append(files, transport.File{Kind: m.Kind, URL: m.URL})
	}

	_, err := d.sender.SendAlbum(ctx, to, files, p.Text, opt)
	if err == nil {
		return StatusSent, nil
	}
	if transport.IsRateLimited(err) {
		return StatusFailed, err
	}

	// A grouped send fails as a unit; retry with every element re-uploaded
	// rather than guessing which URL the platform rejected.
	if errors.Is(err, transport.ErrBadRemoteURL) {
		if st, rerr := d.reuploadAlbum(ctx, to, p, opt); rerr == nil {
			return st, nil
		} else if transport.IsRateLimited(rerr) {
			return StatusFailed, rerr
		} else {
			err = rerr
		}
	}

	d.log.Debug("album send degraded to text", logx.Err(err))
	return d.degraded(ctx, to, p, opt)
}

func (d *Deliverer) reupload(ctx context.Context, to transport.ChatTarget, m model.MediaItem, caption string, opt *transport.SendOptions) (Status, error) {
	body, err := d.download(ctx, m.URL)
	if err != nil {
		return StatusFailed, err
	}
	f := transport.File{
		Kind:   m.Kind,
		Reader: bytes.NewReader(body),
		Name:   fileName(m),
	}
	if _, err := d.sender.SendMedia(ctx, to, f, caption, opt); err != nil {
		return StatusFailed, err
	}
	return StatusSent, nil
}

func (d *Deliverer) reuploadAlbum(ctx context.Context, to transport.ChatTarget, p model.Payload, opt *transport.SendOptions) (Status, error) {
	files := make([]transport.File, 0, len(p.Media))
	for _, m := range p.Media {
		body, err := d.download(ctx, m.URL)
		if err != nil {
			return StatusFailed, err
		}
		files = append(files, transport.File{
			Kind:   m.Kind,
			Reader: bytes.NewReader(body),
			Name:   fileName(m),
		})
	}
	if _, err := d.sender.SendAlbum(ctx, to, files, p.Text, opt); err != nil {
		return StatusFailed, err
	}
	return StatusSent, nil
}

// degraded is the last rung: a plain text message that links the first media
// asset, with link previews forced on so the chat renders a thumbnail.
func (d *Deliverer) degraded(ctx context.Context, to transport.ChatTarget, p model.Payload, opt *transport.SendOptions) (Status, error) {
	link := ""
	for _, m := range p.Media {
		if m.Thumb != "" {
			link = m.Thumb
			break
		}
		if m.URL != "" {
			link = m.URL
			break
		}
	}

	text := p.Text
	if link != "" {
		text = tghtml.JoinH("\n\n", tghtml.H(p.Text), tghtml.Link("media", link)).String()
	}

	degOpt := *opt
	degOpt.DisablePreview = false
	if _, err := d.sender.SendText(ctx, to, text, &degOpt); err != nil {
		return StatusFailed, err
	}
	return StatusDegraded, nil
}

func (d *Deliverer) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if d.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.cfg.UserAgent)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}
	if resp.ContentLength > d.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("download %s: %d bytes over upload ceiling: %w",
			url, resp.ContentLength, transport.ErrTooLarge)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, d.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > d.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("download %s: body over upload ceiling: %w", url, transport.ErrTooLarge)
	}
	return body, nil
}

func fileName(m model.MediaItem) string {
	if base := path.Base(m.URL); base != "." && base != "/" && base != "" {
		return base
	}
	if m.Kind == model.MediaKindVideo {
		return "video.mp4"
	}
	return "photo.jpg"
}
