// Package producer turns sender input into display requests and publishes them.
//
// A Composer validates and normalises input, applies per-sender rate limits, resolves
// the chosen variant into a display duration and hands the request to the broadcast
// transport. Accepted posts are appended to the audit trail when one is configured.
package producer
