package display

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestJSONWireShape(t *testing.T) {
	raw := `{"id":1700000000000,"type":"image","user":"Guest User","platform":"guest",` +
		`"message":"hi","mediaUrl":"data:image/png;base64,AAAA","duration":10000}`
	var r Request
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	assert.Equal(t, int64(1700000000000), r.ID)
	assert.Equal(t, KindImage, r.Kind)
	assert.Equal(t, "guest", r.Origin)
	assert.Equal(t, "Guest User", r.Sender)
	assert.Equal(t, "hi", r.Text)
	assert.Equal(t, "data:image/png;base64,AAAA", r.Media)
	assert.True(t, r.ShowTextWithMedia, "absent showText means true")
	assert.Equal(t, 10*time.Second, r.Duration(0))

	require.NoError(t, json.Unmarshal([]byte(`{"showText":false}`), &r))
	assert.False(t, r.ShowTextWithMedia)
	assert.Empty(t, r.Text, "unmarshal replaces the whole value")
}

func TestDecode(t *testing.T) {
	req := Request{ID: 3, Text: "x"}
	tests := []struct {
		name string
		in   any
		ok   bool
		id   int64
	}{
		{name: "value", in: req, ok: true, id: 3},
		{name: "pointer", in: &req, ok: true, id: 3},
		{name: "nil pointer", in: (*Request)(nil), ok: false},
		{name: "bytes", in: []byte(`{"id":4}`), ok: true, id: 4},
		{name: "raw", in: json.RawMessage(`{"id":5}`), ok: true, id: 5},
		{name: "string", in: `{"id":6}`, ok: true, id: 6},
		{name: "map", in: map[string]any{"id": 7, "message": "m"}, ok: true, id: 7},
		{name: "garbage", in: []byte("nope"), ok: false},
		{name: "other", in: 12, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Decode(tt.in)
			require.Equal(t, tt.ok, ok)
			if ok {
				require.Equal(t, tt.id, got.ID)
			}
		})
	}
}

func TestHasContentAndDuration(t *testing.T) {
	assert.False(t, Request{Text: "   "}.HasContent())
	assert.True(t, Request{Media: "https://x/y.png"}.HasContent())
	assert.Equal(t, 2*time.Second, Request{}.Duration(2*time.Second))
	assert.Equal(t, DefaultDuration, Request{}.Duration(0))
	assert.Equal(t, 1500*time.Millisecond, Request{DurationMS: 1500}.Duration(time.Second))
}
