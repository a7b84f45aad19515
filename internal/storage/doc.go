// Package storage keeps an audit trail of what producers posted to the screens.
//
// The trail is write-mostly: entries are appended as posts are accepted and read
// back only by the HTTP surface's history view. Nothing here is ever replayed into a
// display queue.
package storage
