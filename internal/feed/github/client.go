package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ghnotifier/internal/feed"
	"ghnotifier/pkg/logx"
)

const (
	DefaultAPIURL = "https://api.github.com"
	apiVersion    = "2022-11-28"

	// maxBodyBytes bounds a single response body; a page of 50 notifications is well below this.
	maxBodyBytes = 8 << 20
)

type Config struct {
	APIURL        string
	Token         string
	UserAgent     string
	Timeout       time.Duration
	MaxPages      int
	PerPage       int
	Participating bool
	All           bool
	RatePerSec    int
}

// Client talks to the GitHub notifications REST API.
// It is safe for concurrent use; the credential is read-only after New.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

var _ feed.Client = (*Client)(nil)

func New(cfg Config, httpClient *http.Client, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("github token is empty")
	}
	if strings.TrimSpace(cfg.APIURL) == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = "gh-notifier"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if cfg.PerPage <= 0 || cfg.PerPage > 50 {
		cfg.PerPage = 50
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 5
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		log:     log,
	}, nil
}

// Fetch returns every outstanding notification, following pagination links.
func (c *Client) Fetch(ctx context.Context) ([]feed.Item, error) {
	next := c.listURL()
	var items []feed.Item
	for page := 1; next != ""; page++ {
		if page > c.cfg.MaxPages {
			c.log.Warn("notification pages truncated", logx.Int("max_pages", c.cfg.MaxPages), logx.Int("items", len(items)))
			break
		}
		var batch []feed.Item
		hdr, err := c.getJSON(ctx, "list notifications", next, &batch)
		if err != nil {
			return nil, err
		}
		items = append(items, batch...)
		next = nextLink(hdr.Get("Link"))
	}
	c.log.Debug("notifications fetched", logx.Int("count", len(items)))
	return items, nil
}

type detail struct {
	HTMLURL string `json:"html_url"`
}

// Detail fetches the object behind an API resource reference and returns its
// browsable html_url.
func (c *Client) Detail(ctx context.Context, apiURL string) (string, error) {
	if strings.TrimSpace(apiURL) == "" {
		return "", &feed.FetchError{Op: "get detail", Err: errors.New("empty resource reference")}
	}
	var d detail
	if _, err := c.getJSON(ctx, "get detail", apiURL, &d); err != nil {
		return "", err
	}
	if strings.TrimSpace(d.HTMLURL) == "" {
		return "", &feed.FetchError{Op: "get detail", Err: fmt.Errorf("no html_url in %s", apiURL)}
	}
	return d.HTMLURL, nil
}

func (c *Client) listURL() string {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(c.cfg.PerPage))
	if c.cfg.Participating {
		q.Set("participating", "true")
	}
	if c.cfg.All {
		q.Set("all", "true")
	}
	return c.cfg.APIURL + "/notifications?" + q.Encode()
}

func (c *Client) getJSON(ctx context.Context, op, rawURL string, out any) (http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &feed.FetchError{Op: op, Err: err}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &feed.FetchError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Authorization", "token "+c.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &feed.FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &feed.FetchError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(msg)))}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return nil, &feed.FetchError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return resp.Header, nil
}

// nextLink extracts the rel="next" target from an RFC 8288 Link header.
func nextLink(h string) string {
	for _, part := range strings.Split(h, ",") {
		segs := strings.Split(part, ";")
		if len(segs) < 2 {
			continue
		}
		target := strings.TrimSpace(segs[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		for _, p := range segs[1:] {
			p = strings.TrimSpace(p)
			if strings.EqualFold(p, `rel="next"`) || strings.EqualFold(p, "rel=next") {
				return target[1 : len(target)-1]
			}
		}
	}
	return ""
}
