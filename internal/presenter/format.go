package presenter

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ghnotifier/internal/feed"
)

const DefaultAppName = "GitHub"

// Message is the rendered form of an item.
type Message struct {
	AppName string
	Summary string
	Body    string
}

var titleCaser = cases.Title(language.English)

// ReasonTitle renders a reason for humans: "review_requested" -> "Review Requested".
func ReasonTitle(r feed.Reason) string {
	w := strings.TrimSpace(r.Words())
	if w == "" {
		return "Unknown"
	}
	return titleCaser.String(w)
}

// Format renders it. The relative age is omitted when the item timestamp
// does not parse.
func Format(appName string, it feed.Item, now time.Time) Message {
	if strings.TrimSpace(appName) == "" {
		appName = DefaultAppName
	}
	summary := strings.TrimSpace(it.Repository.FullName)
	if summary == "" {
		summary = it.Repository.Name
	}
	body := fmt.Sprintf("%s (%s/%s)", it.Subject.Title, it.Subject.Type, ReasonTitle(it.Reason))
	if t, err := it.LastModified(); err == nil && !now.IsZero() {
		body += "\nupdated " + humanize.RelTime(t, now, "ago", "from now")
	}
	return Message{AppName: appName, Summary: summary, Body: body}
}
