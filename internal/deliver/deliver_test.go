package deliver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"relaybot/internal/model"
	"relaybot/internal/transport"
	"relaybot/pkg/logx"
)

// sentCall records one transport call made by the deliverer.
type sentCall struct {
	kind     string // "text", "media", "album"
	text     string
	uploaded bool // media arrived as raw bytes, not a URL
	preview  bool // previews enabled
}

// fakeSender scripts transport outcomes per call position.
type fakeSender struct {
	errs  []error // nil entry = success; consumed in call order
	calls []sentCall
}

func (f *fakeSender) next() error {
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakeSender) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	err := f.next()
	if err == nil {
		f.calls = append(f.calls, sentCall{kind: "text", text: text, preview: !opt.DisablePreview})
	}
	return transport.MessageRef{}, err
}

func (f *fakeSender) SendMedia(ctx context.Context, to transport.ChatTarget, file transport.File, caption string, opt *transport.SendOptions) (transport.MessageRef, error) {
	err := f.next()
	if err == nil {
		f.calls = append(f.calls, sentCall{kind: "media", text: caption, uploaded: file.Reader != nil})
	}
	return transport.MessageRef{}, err
}

func (f *fakeSender) SendAlbum(ctx context.Context, to transport.ChatTarget, files []transport.File, caption string, opt *transport.SendOptions) ([]transport.MessageRef, error) {
	err := f.next()
	if err == nil {
		uploaded := len(files) > 0 && files[0].Reader != nil
		f.calls = append(f.calls, sentCall{kind: "album", text: caption, uploaded: uploaded})
	}
	return nil, err
}

func mediaPayload(urls ...string) model.Payload {
	media := make([]model.MediaItem, 0, len(urls))
	for _, u := range urls {
		media = append(media, model.MediaItem{Kind: model.MediaKindPhoto, URL: u})
	}
	kind := model.PayloadMedia
	if len(media) > 1 {
		kind = model.PayloadAlbum
	}
	return model.Payload{Kind: kind, Text: "caption", Media: media}
}

func TestDeliverText(t *testing.T) {
	fs := &fakeSender{}
	d := New(Config{}, fs, logx.Nop())

	st, err := d.Deliver(context.Background(), transport.ChatTarget{ChatID: 1},
		model.Payload{Kind: model.PayloadText, Text: "hi"})
	if err != nil || st != StatusSent {
		t.Fatalf("Deliver = %v, %v", st, err)
	}
	if len(fs.calls) != 1 || fs.calls[0].kind != "text" {
		t.Fatalf("calls = %+v", fs.calls)
	}
}

func TestDeliverMediaDirect(t *testing.T) {
	fs := &fakeSender{}
	d := New(Config{}, fs, logx.Nop())

	st, err := d.Deliver(context.Background(), transport.ChatTarget{ChatID: 1},
		mediaPayload("https://cdn/x.jpg"))
	if err != nil || st != StatusSent {
		t.Fatalf("Deliver = %v, %v", st, err)
	}
	if fs.calls[0].uploaded {
		t.Fatal("direct send must pass the URL through, not upload")
	}
}

func TestDeliverReuploadsOnBadRemoteURL(t *testing.T) {
	asset := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 128))
	}))
	defer asset.Close()

	fs := &fakeSender{errs: []error{transport.ErrBadRemoteURL, nil}}
	d := New(Config{}, fs, logx.Nop())

	st, err := d.Deliver(context.Background(), transport.ChatTarget{ChatID: 1},
		mediaPayload(asset.URL+"/photo.jpg"))
	if err != nil || st != StatusSent {
		t.Fatalf("Deliver = %v, %v", st, err)
	}
	if len(fs.calls) != 1 || !fs.calls[0].uploaded {
		t.Fatalf("expected a re-upload, calls = %+v", fs.calls)
	}
}

func TestDeliverDegradesWhenTooLarge(t *testing.T) {
	asset := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 2048))
	}))
	defer asset.Close()

	fs := &fakeSender{errs: []error{transport.ErrBadRemoteURL, nil}}
	d := New(Config{MaxUploadBytes: 1024}, fs, logx.Nop())

	st, err := d.Deliver(context.Background(), transport.ChatTarget{ChatID: 1},
		mediaPayload(asset.URL+"/big.jpg"))
	if err != nil || st != StatusDegraded {
		t.Fatalf("Deliver = %v, %v", st, err)
	}
	last := fs.calls[len(fs.calls)-1]
	if last.kind != "text" {
		t.Fatalf("degraded rung should send text, calls = %+v", fs.calls)
	}
	if !strings.Contains(last.text, asset.URL) {
		t.Fatalf("degraded text should link the asset: %q", last.text)
	}
	if !last.preview {
		t.Fatal("degraded text must keep previews on for the thumbnail")
	}
}

func TestDeliverDegradesOnOtherSendErrors(t *testing.T) {
	fs := &fakeSender{errs: []error{errors.New("internal server error"), nil}}
	d := New(Config{}, fs, logx.Nop())

	st, err := d.Deliver(context.Background(), transport.ChatTarget{ChatID: 1},
		mediaPayload("https://cdn/x.jpg"))
	if err != nil || st != StatusDegraded {
		t.Fatalf("Deliver = %v, %v", st, err)
	}
}

func TestDeliverRateLimitAbortsLadder(t *testing.T) {
	rl := &transport.RateLimitedError{RetryAfter: 7 * time.Second}
	fs := &fakeSender{errs: []error{rl}}
	d := New(Config{}, fs, logx.Nop())

	st, err := d.Deliver(context.Background(), transport.ChatTarget{ChatID: 1},
		mediaPayload("https://cdn/x.jpg"))
	if st != StatusFailed {
		t.Fatalf("status = %v, want failed", st)
	}
	if !transport.IsRateLimited(err) {
		t.Fatalf("err = %v, want rate limit to surface unchanged", err)
	}
	if len(fs.calls) != 0 {
		t.Fatalf("no degraded rung after a rate limit, calls = %+v", fs.calls)
	}
}

func TestDeliverAlbumReupload(t *testing.T) {
	asset := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "bytes")
	}))
	defer asset.Close()

	fs := &fakeSender{errs: []error{transport.ErrBadRemoteURL, nil}}
	d := New(Config{}, fs, logx.Nop())

	st, err := d.Deliver(context.Background(), transport.ChatTarget{ChatID: 1},
		mediaPayload(asset.URL+"/1.jpg", asset.URL+"/2.jpg"))
	if err != nil || st != StatusSent {
		t.Fatalf("Deliver = %v, %v", st, err)
	}
	if len(fs.calls) != 1 || fs.calls[0].kind != "album" || !fs.calls[0].uploaded {
		t.Fatalf("calls = %+v", fs.calls)
	}
}

func TestDeliverDegradedSendFailureIsFailure(t *testing.T) {
	boom := errors.New("boom")
	fs := &fakeSender{errs: []error{boom, boom}}
	d := New(Config{}, fs, logx.Nop())

	st, err := d.Deliver(context.Background(), transport.ChatTarget{ChatID: 1},
		mediaPayload("https://cdn/x.jpg"))
	if st != StatusFailed || err == nil {
		t.Fatalf("Deliver = %v, %v", st, err)
	}
}
