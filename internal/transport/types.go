// Package transport defines the delivery-platform boundary.
//
// The relay core only depends on the Sender interface and the typed error
// signals below; the Telegram implementation lives in the telegram
// subpackage.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"relaybot/internal/model"
)

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	Silent         bool // suppress the notification sound
}

// File is one media element to send: either a remote URL the platform
// fetches itself, or local bytes to upload (the re-upload fallback).
type File struct {
	Kind   model.MediaKind
	URL    string
	Reader io.Reader
	Name   string
}

// Sender is the platform send API. Implementations must translate platform
// failures into the typed errors below where they apply; everything the
// fallback ladder branches on is represented there.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendMedia(ctx context.Context, to ChatTarget, f File, caption string, opt *SendOptions) (MessageRef, error)
	SendAlbum(ctx context.Context, to ChatTarget, files []File, caption string, opt *SendOptions) ([]MessageRef, error)
}

// ErrBadRemoteURL means the platform could not fetch a remote asset URL.
// Recoverable by downloading the asset and re-uploading raw bytes.
var ErrBadRemoteURL = errors.New("platform cannot fetch remote url")

// ErrTooLarge means the payload exceeded the platform's upload ceiling.
// Terminal for that asset.
var ErrTooLarge = errors.New("payload too large")

// RateLimitedError means the platform asked us to back off. The current
// batch must stop; delivery resumes next cycle.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited (retry after %s)", e.RetryAfter)
}

// IsRateLimited reports whether err carries a rate-limit signal.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}
