package telegram

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v4"

	"postbot/internal/post"
	"postbot/internal/transport"
)

func (a *Adapter) SendText(ctx context.Context, to transport.ChatTarget, html string, opt *transport.SendOptions) (transport.Receipt, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return transport.Receipt{}, err
	}
	m, err := a.bot.Send(recipient(to), html, sendOptions(to, opt))
	if err != nil {
		return transport.Receipt{}, classify(err)
	}
	return transport.Receipt{MessageIDs: []int{m.ID}}, nil
}

func (a *Adapter) SendMedia(ctx context.Context, to transport.ChatTarget, item post.Item, captionHTML string) (transport.Receipt, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return transport.Receipt{}, err
	}
	what, err := sendable(item, captionHTML)
	if err != nil {
		return transport.Receipt{}, transport.Permanent(err)
	}
	m, err := a.bot.Send(recipient(to), what, sendOptions(to, &transport.SendOptions{ParseMode: tele.ModeHTML}))
	if err != nil {
		return transport.Receipt{}, classify(err)
	}
	return transport.Receipt{MessageIDs: []int{m.ID}}, nil
}

func (a *Adapter) SendAlbum(ctx context.Context, to transport.ChatTarget, items []post.Item, captionHTML string) (transport.Receipt, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return transport.Receipt{}, err
	}
	album := make(tele.Album, 0, len(items))
	for i, item := range items {
		caption := ""
		if i == 0 {
			caption = captionHTML
		}
		in, err := inputtable(item, caption)
		if err != nil {
			return transport.Receipt{}, transport.Permanent(err)
		}
		album = append(album, in)
	}
	msgs, err := a.bot.SendAlbum(recipient(to), album, sendOptions(to, &transport.SendOptions{ParseMode: tele.ModeHTML}))
	if err != nil {
		return transport.Receipt{}, classify(err)
	}
	ids := make([]int, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return transport.Receipt{MessageIDs: ids}, nil
}

func recipient(to transport.ChatTarget) tele.Recipient {
	return &tele.Chat{ID: to.ChatID}
}

func sendOptions(to transport.ChatTarget, opt *transport.SendOptions) *tele.SendOptions {
	out := &tele.SendOptions{ParseMode: tele.ModeHTML, ThreadID: to.ThreadID}
	if opt != nil {
		if opt.ParseMode != "" {
			out.ParseMode = opt.ParseMode
		}
		out.DisableWebPagePreview = opt.DisablePreview
		out.DisableNotification = opt.Silent
	}
	return out
}

func sendable(item post.Item, caption string) (interface{}, error) {
	file := tele.File{FileID: item.FileID}
	switch item.Kind {
	case post.KindPhoto:
		return &tele.Photo{File: file, Caption: caption}, nil
	case post.KindVideo:
		return &tele.Video{File: file, Caption: caption}, nil
	case post.KindAnimation:
		return &tele.Animation{File: file, Caption: caption}, nil
	case post.KindVoice:
		return &tele.Voice{File: file, Caption: caption}, nil
	case post.KindDocument:
		return &tele.Document{File: file, Caption: caption}, nil
	default:
		return nil, fmt.Errorf("kind %q is not sendable as media", item.Kind)
	}
}

func inputtable(item post.Item, caption string) (tele.Inputtable, error) {
	file := tele.File{FileID: item.FileID}
	switch item.Kind {
	case post.KindPhoto:
		return &tele.Photo{File: file, Caption: caption}, nil
	case post.KindVideo:
		return &tele.Video{File: file, Caption: caption}, nil
	case post.KindAnimation:
		return &tele.Animation{File: file, Caption: caption}, nil
	default:
		return nil, fmt.Errorf("kind %q cannot join an album", item.Kind)
	}
}
