// Package feed defines the remote notification items the agent polls for and
// the client capability that fetches them.
//
// Items are immutable once fetched. The last-modified timestamp is kept as the
// raw string the remote sent; LastModified parses it on demand so that a
// malformed value surfaces as an error for that single item instead of being
// silently treated as "not new".
package feed
