// Package telegram implements the transport boundary on top of telebot.
package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"relaybot/internal/model"
	"relaybot/internal/transport"
	"relaybot/pkg/logx"
)

type Config struct {
	Token string

	// Offline skips the initial getMe call; used by tests.
	Offline bool
}

// Adapter is a send-only Telegram client. The bot never long-polls: this
// process has no interactive surface, it only delivers.
type Adapter struct {
	bot *tele.Bot
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: cfg.Offline,
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{bot: b, log: log}, nil
}

func (a *Adapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	if err := ctxErr(ctx); err != nil {
		return transport.MessageRef{}, err
	}
	msg, err := a.bot.Send(tele.ChatID(to.ChatID), text, teleOptions(opt))
	if err != nil {
		return transport.MessageRef{}, classify(err)
	}
	return transport.MessageRef{ChatID: to.ChatID, MessageID: msg.ID}, nil
}

func (a *Adapter) SendMedia(ctx context.Context, to transport.ChatTarget, f transport.File, caption string, opt *transport.SendOptions) (transport.MessageRef, error) {
	if err := ctxErr(ctx); err != nil {
		return transport.MessageRef{}, err
	}
	msg, err := a.bot.Send(tele.ChatID(to.ChatID), sendable(f, caption), teleOptions(opt))
	if err != nil {
		return transport.MessageRef{}, classify(err)
	}
	return transport.MessageRef{ChatID: to.ChatID, MessageID: msg.ID}, nil
}

func (a *Adapter) SendAlbum(ctx context.Context, to transport.ChatTarget, files []transport.File, caption string, opt *transport.SendOptions) ([]transport.MessageRef, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	album := make(tele.Album, 0, len(files))
	for i, f := range files {
		// Grouped sends carry the caption on the first element only.
		c := ""
		if i == 0 {
			c = caption
		}
		album = append(album, sendable(f, c))
	}

	msgs, err := a.bot.SendAlbum(tele.ChatID(to.ChatID), album, teleOptions(opt))
	if err != nil {
		return nil, classify(err)
	}
	refs := make([]transport.MessageRef, 0, len(msgs))
	for _, m := range msgs {
		refs = append(refs, transport.MessageRef{ChatID: to.ChatID, MessageID: m.ID})
	}
	return refs, nil
}

func sendable(f transport.File, caption string) tele.Inputtable {
	var file tele.File
	if f.Reader != nil {
		file = tele.FromReader(f.Reader)
		file.FileName = f.Name
	} else {
		file = tele.FromURL(f.URL)
	}
	if f.Kind == model.MediaKindVideo {
		return &tele.Video{File: file, Caption: caption}
	}
	return &tele.Photo{File: file, Caption: caption}
}

func teleOptions(opt *transport.SendOptions) *tele.SendOptions {
	if opt == nil {
		opt = &transport.SendOptions{}
	}
	return &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
		DisableNotification:   opt.Silent,
	}
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// classify maps Telegram API failures onto the transport's typed signals.
// The API does not expose structured causes for most of these, so matching
// the error description is the only option.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var flood *tele.FloodError
	if errors.As(err, &flood) {
		return &transport.RateLimitedError{RetryAfter: time.Duration(flood.RetryAfter) * time.Second}
	}

	desc := strings.ToLower(err.Error())
	switch {
	case strings.Contains(desc, "failed to get http url content"),
		strings.Contains(desc, "wrong file identifier/http url"),
		strings.Contains(desc, "webpage_curl_failed"),
		strings.Contains(desc, "webpage_media_empty"),
		strings.Contains(desc, "wrong type of the web page content"):
		return errors.Join(transport.ErrBadRemoteURL, err)
	case strings.Contains(desc, "request entity too large"),
		strings.Contains(desc, "file is too big"):
		return errors.Join(transport.ErrTooLarge, err)
	case strings.Contains(desc, "too many requests"):
		return &transport.RateLimitedError{RetryAfter: time.Second}
	}
	return err
}
