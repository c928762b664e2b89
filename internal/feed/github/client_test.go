package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ghnotifier/internal/feed"
	"ghnotifier/pkg/logx"
)

const pageOne = `[{
  "id": "1",
  "reason": "review_requested",
  "unread": true,
  "repository": {"id": 7, "name": "hello", "full_name": "octo/hello", "html_url": "https://github.com/octo/hello"},
  "subject": {"title": "Fix it", "url": "https://api.example/pulls/1", "latest_comment_url": "https://api.example/comments/9", "type": "PullRequest"},
  "updated_at": "2024-01-01T01:00:00Z"
}]`

const pageTwo = `[{
  "id": "2",
  "reason": "mention",
  "repository": {"id": 7, "name": "hello", "full_name": "octo/hello"},
  "subject": {"title": "Ping", "url": "https://api.example/issues/2", "latest_comment_url": null, "type": "Issue"},
  "updated_at": "2024-01-01T02:00:00Z"
}]`

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(Config{APIURL: srv.URL, Token: "secret", RatePerSec: 100, Timeout: 5 * time.Second}, srv.Client(), logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestFetchFollowsPagination(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "token secret" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Accept"); got != "application/vnd.github+json" {
			t.Errorf("Accept = %q", got)
		}
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, pageTwo)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/notifications?page=2>; rel="next", <%s/notifications?page=2>; rel="last"`, srv.URL, srv.URL))
		fmt.Fprint(w, pageOne)
	}))
	defer srv.Close()

	items, err := newTestClient(t, srv).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	first := items[0]
	if first.Reason != feed.ReasonReviewRequested || first.Repository.FullName != "octo/hello" {
		t.Fatalf("unexpected first item %+v", first)
	}
	if first.Subject.LatestCommentURL != "https://api.example/comments/9" {
		t.Fatalf("latest comment url = %q", first.Subject.LatestCommentURL)
	}
	if items[1].Subject.LatestCommentURL != "" {
		t.Fatalf("null latest_comment_url should decode to empty, got %q", items[1].Subject.LatestCommentURL)
	}
}

func TestFetchSurfacesAuthFailureAsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Fetch(context.Background())
	if !errors.Is(err, feed.ErrFetch) {
		t.Fatalf("err = %v, want ErrFetch", err)
	}
	var fe *feed.FetchError
	if !errors.As(err, &fe) || fe.Status != http.StatusUnauthorized {
		t.Fatalf("expected FetchError with 401, got %v", err)
	}
}

func TestFetchSurfacesTransportFailureAsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c, err := New(Config{APIURL: srv.URL, Token: "t"}, nil, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Fetch(context.Background()); !errors.Is(err, feed.ErrFetch) {
		t.Fatalf("err = %v, want ErrFetch", err)
	}
}

func TestFetchMaxPages(t *testing.T) {
	var srv *httptest.Server
	calls := 0
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Link", fmt.Sprintf(`<%s/notifications?page=%d>; rel="next"`, srv.URL, calls+1))
		fmt.Fprint(w, pageOne)
	}))
	defer srv.Close()

	c, err := New(Config{APIURL: srv.URL, Token: "t", MaxPages: 3, RatePerSec: 100}, srv.Client(), logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	items, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if calls != 3 || len(items) != 3 {
		t.Fatalf("calls=%d items=%d, want 3/3", calls, len(items))
	}
}

func TestDetailReturnsHTMLURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-GitHub-Api-Version") != apiVersion {
			t.Errorf("missing api version header")
		}
		switch r.URL.Path {
		case "/comments/9":
			fmt.Fprint(w, `{"html_url":"https://github.com/octo/hello/pull/1#issuecomment-9"}`)
		default:
			fmt.Fprint(w, `{}`)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	got, err := c.Detail(context.Background(), srv.URL+"/comments/9")
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if !strings.HasSuffix(got, "#issuecomment-9") {
		t.Fatalf("Detail = %q", got)
	}
	if _, err := c.Detail(context.Background(), srv.URL+"/empty"); err == nil {
		t.Fatal("expected error when html_url missing")
	}
	if _, err := c.Detail(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty reference")
	}
}

func TestNewRequiresToken(t *testing.T) {
	if _, err := New(Config{}, nil, logx.Nop()); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestNextLink(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{`<https://x/n?page=2>; rel="next", <https://x/n?page=5>; rel="last"`, "https://x/n?page=2"},
		{`<https://x/n?page=1>; rel="prev"`, ""},
		{``, ""},
		{`garbage`, ""},
	}
	for _, tt := range tests {
		if got := nextLink(tt.in); got != tt.want {
			t.Fatalf("nextLink(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
