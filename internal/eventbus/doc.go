// Package eventbus is pubcast's broadcast transport.
//
// Producers publish display requests on a topic; every scheduler subscribed to that
// topic receives its own copy, in publish order. There is no persistence and no
// acknowledgement: a subscriber that is not listening at publish time never sees the
// event, and a subscriber whose buffer is full drops it.
package eventbus
