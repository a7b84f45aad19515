// Package screen hosts the display screens and their HTTP surface.
//
// A Hub owns one display scheduler per configured screen, all fed from the same
// transport topic. The Server exposes the post endpoint producers use from a
// browser, JSON views of every screen and a websocket per screen that pushes a
// render frame on each slot change.
package screen
