package telegram

import (
	"errors"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"relaybot/internal/model"
	"relaybot/internal/transport"
)

func TestClassify(t *testing.T) {
	flood := &tele.FloodError{
		Error:      &tele.Error{Code: 429, Description: "Too Many Requests: retry after 42"},
		RetryAfter: 42,
	}

	tests := []struct {
		name  string
		in    error
		check func(t *testing.T, out error)
	}{
		{
			name: "nil stays nil",
			in:   nil,
			check: func(t *testing.T, out error) {
				if out != nil {
					t.Fatalf("out = %v", out)
				}
			},
		},
		{
			name: "flood error carries retry-after",
			in:   flood,
			check: func(t *testing.T, out error) {
				var rl *transport.RateLimitedError
				if !errors.As(out, &rl) {
					t.Fatalf("out = %v, want rate limited", out)
				}
				if rl.RetryAfter != 42*time.Second {
					t.Fatalf("RetryAfter = %s", rl.RetryAfter)
				}
			},
		},
		{
			name: "unfetchable url",
			in:   errors.New("telegram: Bad Request: failed to get HTTP URL content (400)"),
			check: func(t *testing.T, out error) {
				if !errors.Is(out, transport.ErrBadRemoteURL) {
					t.Fatalf("out = %v, want ErrBadRemoteURL", out)
				}
			},
		},
		{
			name: "wrong file identifier",
			in:   errors.New("telegram: Bad Request: wrong file identifier/HTTP URL specified (400)"),
			check: func(t *testing.T, out error) {
				if !errors.Is(out, transport.ErrBadRemoteURL) {
					t.Fatalf("out = %v, want ErrBadRemoteURL", out)
				}
			},
		},
		{
			name: "webpage fetch failure",
			in:   errors.New("telegram: Bad Request: WEBPAGE_CURL_FAILED (400)"),
			check: func(t *testing.T, out error) {
				if !errors.Is(out, transport.ErrBadRemoteURL) {
					t.Fatalf("out = %v, want ErrBadRemoteURL", out)
				}
			},
		},
		{
			name: "entity too large",
			in:   errors.New("telegram: Request Entity Too Large (413)"),
			check: func(t *testing.T, out error) {
				if !errors.Is(out, transport.ErrTooLarge) {
					t.Fatalf("out = %v, want ErrTooLarge", out)
				}
			},
		},
		{
			name: "file too big",
			in:   errors.New("telegram: Bad Request: file is too big (400)"),
			check: func(t *testing.T, out error) {
				if !errors.Is(out, transport.ErrTooLarge) {
					t.Fatalf("out = %v, want ErrTooLarge", out)
				}
			},
		},
		{
			name: "anything else passes through",
			in:   errors.New("telegram: Bad Request: chat not found (400)"),
			check: func(t *testing.T, out error) {
				if errors.Is(out, transport.ErrBadRemoteURL) || errors.Is(out, transport.ErrTooLarge) || transport.IsRateLimited(out) {
					t.Fatalf("out = %v, want untouched", out)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, classify(tt.in))
		})
	}
}

func TestSendableKinds(t *testing.T) {
	if _, ok := sendable(transport.File{Kind: model.MediaKindVideo, URL: "https://x/v.mp4"}, "c").(*tele.Video); !ok {
		t.Fatal("video file should map to tele.Video")
	}
	if _, ok := sendable(transport.File{Kind: model.MediaKindPhoto, URL: "https://x/p.jpg"}, "c").(*tele.Photo); !ok {
		t.Fatal("photo file should map to tele.Photo")
	}
}

func TestTeleOptions(t *testing.T) {
	opt := teleOptions(&transport.SendOptions{ParseMode: "HTML", DisablePreview: true, Silent: true})
	if opt.ParseMode != "HTML" || !opt.DisableWebPagePreview || !opt.DisableNotification {
		t.Fatalf("opt = %+v", opt)
	}
	if teleOptions(nil) == nil {
		t.Fatal("nil options should yield defaults")
	}
}
