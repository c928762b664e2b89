// Package opener turns a feed item into a browsable URL and hands it to the
// platform's viewer.
package opener

import (
	"context"
	"fmt"
	"strings"

	"ghnotifier/internal/feed"
)

// ResolveTarget picks the resource reference to open: the latest comment
// when there is one, otherwise the subject itself.
func ResolveTarget(s feed.Subject) string {
	if u := strings.TrimSpace(s.LatestCommentURL); u != "" {
		return u
	}
	return strings.TrimSpace(s.URL)
}

// Detailer fetches the detail object of an API reference and returns its
// browsable html_url.
type Detailer interface {
	Detail(ctx context.Context, apiURL string) (string, error)
}

// Resolver maps items to browsable URLs.
type Resolver struct {
	Detailer Detailer
}

// Resolve returns the page to open for it. Subjects without a reference
// fall back to the repository page.
func (r Resolver) Resolve(ctx context.Context, it feed.Item) (string, error) {
	target := ResolveTarget(it.Subject)
	if target == "" {
		if u := strings.TrimSpace(it.Repository.HTMLURL); u != "" {
			return u, nil
		}
		return "", fmt.Errorf("item %s: nothing to open", it.ID)
	}
	if r.Detailer == nil {
		return target, nil
	}
	u, err := r.Detailer.Detail(ctx, target)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", target, err)
	}
	return u, nil
}
