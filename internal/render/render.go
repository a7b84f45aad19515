// Package render maps a screen's slot to what a display surface should paint.
//
// It is a pure function of the current request and the visibility flag; it holds no
// state and never talks to the scheduler.
package render

import (
	"strings"

	"pubcast/internal/display"
)

// Mode is one of the four ways a slot can be painted.
type Mode string

const (
	ModeIdle      Mode = "idle"
	ModeText      Mode = "text"
	ModeImage     Mode = "image"
	ModeImageText Mode = "image_text"
)

// Style selects the text treatment. System messages are drawn dark on the light
// background; everything else gets the bright drop-shadow treatment.
type Style string

const (
	StyleSystem Style = "system"
	StyleGuest  Style = "guest"
)

// ModeOf resolves the rendering mode from media presence, text presence and the
// show-text flag. Requests with neither text nor media render as idle.
func ModeOf(r display.Request) Mode {
	hasMedia := r.Media != ""
	hasText := strings.TrimSpace(r.Text) != ""
	switch {
	case hasMedia && hasText && r.ShowTextWithMedia:
		return ModeImageText
	case hasMedia:
		return ModeImage
	case hasText:
		return ModeText
	default:
		return ModeIdle
	}
}

// StyleOf picks the text style from the request origin.
func StyleOf(r display.Request) Style {
	if r.Origin == display.OriginSystem {
		return StyleSystem
	}
	return StyleGuest
}

// Frame is the JSON document pushed to screens.
type Frame struct {
	Screen   string        `json:"screen"`
	Seq      uint64        `json:"seq"`
	Mode     Mode          `json:"mode"`
	Style    Style         `json:"style"`
	Visible  bool          `json:"visible"`
	Phase    display.Phase `json:"phase"`
	ID       int64         `json:"id"`
	Origin   string        `json:"origin"`
	Sender   string        `json:"sender,omitempty"`
	Text     string        `json:"text,omitempty"`
	Media    string        `json:"media,omitempty"`
	QueueLen int           `json:"queue_len"`
}

// FrameOf builds the frame for a snapshot. Fields the mode does not use are left
// empty, so a suppressed caption never reaches the screen.
func FrameOf(s display.Snapshot) Frame {
	cur := s.Current
	f := Frame{
		Screen:   s.Screen,
		Seq:      s.Seq,
		Mode:     ModeOf(cur),
		Style:    StyleOf(cur),
		Visible:  s.Visible,
		Phase:    s.Phase,
		ID:       cur.ID,
		Origin:   cur.Origin,
		Sender:   cur.Sender,
		QueueLen: s.QueueLen,
	}
	switch f.Mode {
	case ModeText:
		f.Text = cur.Text
	case ModeImage:
		f.Media = cur.Media
	case ModeImageText:
		f.Text = cur.Text
		f.Media = cur.Media
	}
	return f
}
