// Package engine runs the poll-diff-dispatch loop.
//
// Each cycle records its start, fetches the full outstanding set, keeps the
// items modified strictly after the watermark, presents them concurrently
// and, once every item has been handed to the presenter, moves the watermark
// to the cycle start. A failed fetch leaves the watermark untouched.
//
// What happens after an item is shown (waiting for the user, resolving the
// target, launching the viewer) runs on follow-up goroutines that outlive
// the cycle unless Config.AwaitAction is set.
package engine
