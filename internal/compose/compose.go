// Package compose turns a released item set plus caption text into
// platform-valid outbound payloads. Compose is a pure function: no I/O, no
// shared state, deterministic for identical inputs.
package compose

import (
	"errors"
	"strings"

	"postbot/internal/post"
	"postbot/pkg/tghtml"
)

type PayloadKind string

const (
	PayloadText   PayloadKind = "text"
	PayloadSingle PayloadKind = "single"
	PayloadAlbum  PayloadKind = "album"
)

// Payload is one concrete outbound unit for the delivery client.
//
// Text is the message body for PayloadText, and the (possibly empty) caption
// for PayloadSingle/PayloadAlbum; an album caption goes on its first item.
type Payload struct {
	Kind  PayloadKind
	Text  string
	Items []post.Item
}

var (
	// ErrEmpty: nothing to compose (no items, no text).
	ErrEmpty = errors.New("compose: empty post")
	// ErrCaptionConflict: only the first item of a group may carry a caption.
	ErrCaptionConflict = errors.New("compose: more than one caption-bearing item")
)

// Compose builds the ordered payload sequence for items plus caption text.
//
// Policy (the caption-on-first-item rule is a platform behavior downstream
// consumers rely on; it is preserved exactly, not generalized):
//   - no items: caption alone, split across text payloads at the 4096 limit;
//   - caption <= 1024 (post-sanitation): attached to the first payload;
//   - caption > 1024: the first payload goes out uncaptioned, followed by the
//     full text as separate text payload(s);
//   - more than 10 albumable items: split into albums of <= 10 in original
//     order, caption only on the very first payload;
//   - voice/document items are never albumable and emit as single payloads
//     in their arrival position.
func Compose(items []post.Item, caption string) ([]Payload, error) {
	for i, it := range items {
		if i > 0 && it.Caption != "" {
			return nil, ErrCaptionConflict
		}
	}

	text := strings.TrimSpace(caption)
	if text == "" && len(items) > 0 {
		text = strings.TrimSpace(items[0].Caption)
	}
	text = tghtml.Sanitize(text)

	if len(items) == 0 {
		if text == "" {
			return nil, ErrEmpty
		}
		return textPayloads(text), nil
	}

	fits := tghtml.Len(text) <= tghtml.MaxCaptionLen

	out := make([]Payload, 0, len(items)/tghtml.MaxAlbumItems+2)
	firstPayload := true
	add := func(p Payload) {
		if firstPayload && fits {
			p.Text = text
		}
		firstPayload = false
		out = append(out, p)
	}

	i := 0
	for i < len(items) {
		if !items[i].Albumable() {
			add(Payload{Kind: PayloadSingle, Items: items[i : i+1]})
			i++
			continue
		}
		j := i
		for j < len(items) && items[j].Albumable() {
			j++
		}
		for run := items[i:j]; len(run) > 0; {
			n := len(run)
			if n > tghtml.MaxAlbumItems {
				n = tghtml.MaxAlbumItems
			}
			kind := PayloadAlbum
			if n == 1 {
				kind = PayloadSingle
			}
			add(Payload{Kind: kind, Items: run[:n]})
			run = run[n:]
		}
		i = j
	}

	// Caption too long for a caption slot: carry it as trailing text.
	if !fits && text != "" {
		out = append(out, textPayloads(text)...)
	}
	return out, nil
}

func textPayloads(text string) []Payload {
	chunks := tghtml.SplitText(text, tghtml.MaxMessageLen)
	out := make([]Payload, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, Payload{Kind: PayloadText, Text: c})
	}
	return out
}
