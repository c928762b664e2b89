package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Reason is the classification of a notification.
//
// https://docs.github.com/en/rest/activity/notifications#about-notification-reasons
type Reason string

const (
	ReasonApprovalRequested      Reason = "approval_requested"
	ReasonAssign                 Reason = "assign"
	ReasonAuthor                 Reason = "author"
	ReasonComment                Reason = "comment"
	ReasonCIActivity             Reason = "ci_activity"
	ReasonInvitation             Reason = "invitation"
	ReasonManual                 Reason = "manual"
	ReasonMemberFeatureRequested Reason = "member_feature_requested"
	ReasonMention                Reason = "mention"
	ReasonReviewRequested        Reason = "review_requested"
	ReasonSecurityAlert          Reason = "security_alert"
	ReasonSecurityAdvisoryCredit Reason = "security_advisory_credit"
	ReasonStateChange            Reason = "state_change"
	ReasonSubscribed             Reason = "subscribed"
	ReasonTeamMention            Reason = "team_mention"
)

var knownReasons = map[Reason]struct{}{
	ReasonApprovalRequested:      {},
	ReasonAssign:                 {},
	ReasonAuthor:                 {},
	ReasonComment:                {},
	ReasonCIActivity:             {},
	ReasonInvitation:             {},
	ReasonManual:                 {},
	ReasonMemberFeatureRequested: {},
	ReasonMention:                {},
	ReasonReviewRequested:        {},
	ReasonSecurityAlert:          {},
	ReasonSecurityAdvisoryCredit: {},
	ReasonStateChange:            {},
	ReasonSubscribed:             {},
	ReasonTeamMention:            {},
}

// Known reports whether r belongs to the closed set of documented reasons.
func (r Reason) Known() bool {
	_, ok := knownReasons[r]
	return ok
}

// Words returns the reason with underscores replaced by spaces ("review requested").
func (r Reason) Words() string {
	return strings.ReplaceAll(string(r), "_", " ")
}

type Repository struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
}

type Subject struct {
	Title string `json:"title"`
	// URL is the primary resource reference (an API URL). It can be empty for
	// subjects without a backing resource, e.g. some CI notifications.
	URL              string `json:"url"`
	LatestCommentURL string `json:"latest_comment_url,omitempty"`
	Type             string `json:"type"`
}

// Item is one outstanding notification.
type Item struct {
	ID         string     `json:"id"`
	Reason     Reason     `json:"reason"`
	Unread     bool       `json:"unread"`
	Repository Repository `json:"repository"`
	Subject    Subject    `json:"subject"`
	UpdatedAt  string     `json:"updated_at"`
}

// LastModified parses UpdatedAt as a timezone-aware RFC 3339 instant.
func (it Item) LastModified() (time.Time, error) {
	raw := strings.TrimSpace(it.UpdatedAt)
	if raw == "" {
		return time.Time{}, fmt.Errorf("item %s: missing updated_at", it.ID)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("item %s: invalid updated_at %q: %w", it.ID, raw, err)
	}
	return t, nil
}

// Client fetches the full current set of outstanding items.
type Client interface {
	Fetch(ctx context.Context) ([]Item, error)
}

// ErrFetch is matched (errors.Is) by every error a Client returns, whatever
// the cause: transport, authentication, authorization or decoding.
var ErrFetch = errors.New("feed fetch failed")

// FetchError carries the underlying cause and, when known, the HTTP status.
type FetchError struct {
	Op     string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }
