package display

import (
	"encoding/json"
	"strings"
	"time"
)

// Kind is the producer-declared content type of a request.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// OriginSystem marks synthetic requests (the placeholder).
const OriginSystem = "system"

// Request is one message to show on a screen. It is a value: once published it is
// never mutated, only copied.
//
// JSON field names follow the wire payload produced by the sender page.
type Request struct {
	// ID is time-of-creation based and only used for identity/debugging;
	// arrival order decides presentation order.
	ID     int64  `json:"id"`
	Kind   Kind   `json:"type"`
	Origin string `json:"platform"`
	Sender string `json:"user,omitempty"`
	Text   string `json:"message,omitempty"`
	// Media is an inline data URL or a plain URL; opaque to the scheduler.
	Media string `json:"mediaUrl,omitempty"`
	// ShowTextWithMedia controls whether Text is overlaid on Media.
	// An absent "showText" on the wire means true.
	ShowTextWithMedia bool  `json:"showText"`
	DurationMS        int64 `json:"duration"`
}

// UnmarshalJSON defaults showText to true when the member is absent or null.
func (r *Request) UnmarshalJSON(b []byte) error {
	type wire Request
	var w struct {
		wire
		ShowText *bool `json:"showText"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = Request(w.wire)
	r.ShowTextWithMedia = w.ShowText == nil || *w.ShowText
	return nil
}

// HasContent reports whether there is anything to render.
func (r Request) HasContent() bool {
	return strings.TrimSpace(r.Text) != "" || r.Media != ""
}

// Duration returns how long the request holds the slot. Absent or non-positive
// durations fall back to def (or DefaultDuration when def is not positive).
func (r Request) Duration(def time.Duration) time.Duration {
	if r.DurationMS > 0 {
		return time.Duration(r.DurationMS) * time.Millisecond
	}
	if def > 0 {
		return def
	}
	return DefaultDuration
}

// Placeholder is what a screen shows before anything has arrived.
func Placeholder(text string) Request {
	if strings.TrimSpace(text) == "" {
		text = DefaultPlaceholderText
	}
	return Request{
		ID:                1,
		Kind:              KindText,
		Origin:            OriginSystem,
		Sender:            "System",
		Text:              text,
		ShowTextWithMedia: true,
		DurationMS:        DefaultDuration.Milliseconds(),
	}
}

// Decode extracts a Request from a transport payload. It accepts a Request value or
// pointer, or the JSON wire form as bytes, string or a decoded map. Anything else
// (including malformed JSON) reports false.
func Decode(data any) (Request, bool) {
	switch v := data.(type) {
	case Request:
		return v, true
	case *Request:
		if v == nil {
			return Request{}, false
		}
		return *v, true
	case json.RawMessage:
		return decodeJSON(v)
	case []byte:
		return decodeJSON(v)
	case string:
		return decodeJSON([]byte(v))
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return Request{}, false
		}
		return decodeJSON(b)
	default:
		return Request{}, false
	}
}

func decodeJSON(b []byte) (Request, bool) {
	var r Request
	if err := json.Unmarshal(b, &r); err != nil {
		return Request{}, false
	}
	return r, true
}
