// Package storage persists the agent's progress across restarts.
//
// It stores:
//   - The watermark: the instant before which every poll cycle has been
//     fully processed (one RFC 3339 timestamp)
//   - An optional dispatch journal (operational audit of item outcomes)
//
// Two drivers exist: "file" (default, a plain timestamp file in the
// per-application cache directory) and "sqlite".
package storage
