package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pubcast/internal/display"
)

func TestModeOf(t *testing.T) {
	const img = "data:image/png;base64,AAAA"
	tests := []struct {
		name string
		req  display.Request
		want Mode
	}{
		{name: "text only", req: display.Request{Text: "hello"}, want: ModeText},
		{name: "image only", req: display.Request{Media: img}, want: ModeImage},
		{name: "image with overlay", req: display.Request{Media: img, Text: "hi", ShowTextWithMedia: true}, want: ModeImageText},
		{name: "overlay suppressed", req: display.Request{Media: img, Text: "hi", ShowTextWithMedia: false}, want: ModeImage},
		{name: "blank text with image", req: display.Request{Media: img, Text: "  ", ShowTextWithMedia: true}, want: ModeImage},
		{name: "nothing", req: display.Request{}, want: ModeIdle},
		{name: "whitespace only", req: display.Request{Text: "\n\t"}, want: ModeIdle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ModeOf(tt.req))
		})
	}
}

func TestFrameOfSuppressesHiddenCaption(t *testing.T) {
	snap := display.Snapshot{
		Screen:  "main",
		Seq:     4,
		Phase:   display.PhaseActive,
		Visible: true,
		Current: display.Request{ID: 9, Origin: "guest", Media: "https://x/y.png", Text: "secret", ShowTextWithMedia: false},
	}
	f := FrameOf(snap)
	assert.Equal(t, ModeImage, f.Mode)
	assert.Equal(t, StyleGuest, f.Style)
	assert.Empty(t, f.Text)
	assert.Equal(t, "https://x/y.png", f.Media)
	assert.True(t, f.Visible)
	assert.Equal(t, uint64(4), f.Seq)
}

func TestFrameOfPlaceholder(t *testing.T) {
	f := FrameOf(display.Snapshot{Current: display.Placeholder(""), Visible: true})
	assert.Equal(t, ModeText, f.Mode)
	assert.Equal(t, StyleSystem, f.Style)
	assert.Equal(t, display.DefaultPlaceholderText, f.Text)
}
