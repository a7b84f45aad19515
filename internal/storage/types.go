package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file next to Path
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	// Retain caps the number of kept entries (sqlite only); 0 keeps everything.
	Retain int
}

// PostEntry records one accepted post. Media payloads are not stored, only their
// size, so the trail stays small.
type PostEntry struct {
	At         time.Time `json:"at"`
	ID         int64     `json:"id"`
	Channel    string    `json:"channel"`
	Origin     string    `json:"origin"`
	Sender     string    `json:"sender,omitempty"`
	Kind       string    `json:"kind"`
	Text       string    `json:"text,omitempty"`
	MediaBytes int       `json:"media_bytes,omitempty"`
	ShowText   bool      `json:"show_text"`
	Variant    string    `json:"variant,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}
