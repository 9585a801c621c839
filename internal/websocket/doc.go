// Package websocket implements the read-only firehose hub using the actor pattern.
//
// The Hub polls the ledger tail on a tick with its own cursor and fans every
// new entry out to connected WebSocket observers as JSON. Single goroutine +
// command channel (no mutexes); per-connection write goroutines evict slow
// clients instead of stalling the feed.
package websocket
