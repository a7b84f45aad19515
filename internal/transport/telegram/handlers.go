package telegram

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"pubcast/internal/display"
	"pubcast/internal/producer"
	"pubcast/internal/variants"
	logx "pubcast/pkg/logx"
)

const helpText = `Send me something to show on the screens.

/post hello everyone - show a text message
/post @30s hello - pick a display duration (see /variants)
Send a photo - show it; the caption is drawn over it
Add #notext to a caption to show the photo alone`

// postArgs is a parsed /post payload or photo caption.
type postArgs struct {
	Variant  string
	ShowText bool
	Text     string
}

// parseArgs pulls a leading "@variant" token and any "#notext" tag out of raw.
func parseArgs(raw string) postArgs {
	out := postArgs{ShowText: true}
	words := strings.Fields(raw)
	kept := words[:0]
	for i, w := range words {
		switch {
		case i == 0 && strings.HasPrefix(w, "@") && len(w) > 1:
			out.Variant = w[1:]
		case strings.EqualFold(w, "#notext"):
			out.ShowText = false
		default:
			kept = append(kept, w)
		}
	}
	out.Text = strings.Join(kept, " ")
	return out
}

func senderName(u *tele.User) string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (b *Bot) chatAllowed(chatID int64) bool {
	return len(b.allowed) == 0 || b.allowed[chatID]
}

func (b *Bot) onHelp(c tele.Context) error {
	return c.Send(helpText)
}

func (b *Bot) onVariants(c tele.Context) error {
	return c.Send(variantsText(b.variants.Load()))
}

func variantsText(cat *variants.Catalog) string {
	var sb strings.Builder
	for _, kind := range []display.Kind{display.KindText, display.KindImage} {
		vs := cat.List(kind)
		fmt.Fprintf(&sb, "%s:", kind)
		if len(vs) == 0 {
			sb.WriteString(" default")
		}
		for i, v := range vs {
			if i > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, " @%s (%s)", v.Label, v.Duration)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) onPost(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	return c.Send(b.post(ctx, c.Chat().ID, senderName(c.Sender()), c.Message().Payload, ""))
}

func (b *Bot) onPhoto(c tele.Context) error {
	m := c.Message()
	if m == nil || m.Photo == nil {
		return nil
	}
	if !b.chatAllowed(c.Chat().ID) {
		return c.Send(replyNotAllowed)
	}
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	media, err := b.fetchPhoto(ctx, &m.Photo.File)
	if err != nil {
		b.log.Warn("photo download failed", logx.Int64("chat_id", c.Chat().ID), logx.Err(err))
		return c.Send("Could not download that photo, please try again.")
	}
	return c.Send(b.post(ctx, c.Chat().ID, senderName(c.Sender()), m.Caption, media))
}

const replyNotAllowed = "This chat is not allowed to post."

// post publishes one message and returns the reply for the sender.
func (b *Bot) post(ctx context.Context, chatID int64, sender, raw, media string) string {
	if !b.chatAllowed(chatID) {
		return replyNotAllowed
	}
	args := parseArgs(raw)
	show := args.ShowText
	req, err := b.pub.Publish(ctx, producer.Input{
		Sender:   sender,
		Origin:   Origin,
		Text:     args.Text,
		Media:    media,
		ShowText: &show,
		Variant:  args.Variant,
		Channel:  Channel,
	})
	if err != nil {
		b.log.Debug("telegram post rejected", logx.Int64("chat_id", chatID), logx.Err(err))
		return replyFor(err)
	}
	return fmt.Sprintf("Queued. It will show for %s.", time.Duration(req.DurationMS)*time.Millisecond)
}

func replyFor(err error) string {
	switch {
	case errors.Is(err, producer.ErrEmpty):
		return "Nothing to show. Usage: /post <text>, or send a photo."
	case errors.Is(err, producer.ErrTooLong):
		return "That message is too long for the screen."
	case errors.Is(err, producer.ErrRateLimited):
		return "You are posting too fast, please wait a moment."
	case errors.Is(err, variants.ErrUnknownVariant):
		return "Unknown duration. See /variants."
	case errors.Is(err, producer.ErrBadMedia):
		return "That image format is not supported."
	default:
		return "Something went wrong, please try again."
	}
}

// fetchPhoto downloads a Telegram file and inlines it as a data URL.
func (b *Bot) fetchPhoto(ctx context.Context, f *tele.File) (string, error) {
	if f.FileSize > maxPhotoBytes {
		return "", fmt.Errorf("photo too large: %d bytes", f.FileSize)
	}
	rc, err := b.bot.File(f)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := io.ReadAll(io.LimitReader(rc, maxPhotoBytes+1))
		done <- result{data, err}
	}()
	var res result
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return "", res.err
	}
	if len(res.data) > maxPhotoBytes {
		return "", fmt.Errorf("photo too large")
	}
	return dataURL(res.data), nil
}

func dataURL(data []byte) string {
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
