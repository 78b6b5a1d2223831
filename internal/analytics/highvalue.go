package analytics

import (
	"strings"

	"github.com/seentics/seentics-go/internal/page"
)

// Explicit opt-in markers. Elements carrying these are always tracked.
const (
	trackAttr  = "data-track"
	trackClass = "seentics-track"
)

// Curated signals for call-to-action elements. Keeping the lists short
// bounds event volume: an untagged element matching none of them is not
// worth a network round trip.
var (
	highValueKeywords = []string{
		"checkout", "buy", "purchase", "order", "add to cart", "add-to-cart",
		"sign up", "signup", "sign-up", "register", "subscribe",
		"get started", "get-started", "start free", "free trial", "trial",
		"pricing", "upgrade", "book", "demo", "contact", "download",
	}

	highValueHrefFragments = []string{
		"/checkout", "/cart", "/pricing", "/signup", "/sign-up", "/register",
		"/subscribe", "/demo", "/contact", "/download", "/upgrade", "/trial",
	}
)

// clickClassification explains why a click qualified for tracking.
type clickClassification struct {
	Tracked bool
	Reason  string // "explicit", "submit", "keyword", "href"
	Name    string // explicit tracking name, when provided
}

// classifyClick decides whether a clicked element is worth an event.
// Explicit markers win; otherwise a small heuristic pass over the text,
// id/class, and href looks for high-value intent.
func classifyClick(el page.Element) clickClassification {
	if name := el.Attr(trackAttr); name != "" {
		return clickClassification{Tracked: true, Reason: "explicit", Name: name}
	}
	if el.HasClass(trackClass) {
		return clickClassification{Tracked: true, Reason: "explicit"}
	}

	if el.InForm && strings.EqualFold(el.TypeAttr, "submit") {
		return clickClassification{Tracked: true, Reason: "submit"}
	}

	haystack := strings.ToLower(el.Text + " " + el.ID + " " + strings.Join(el.Classes, " "))
	for _, kw := range highValueKeywords {
		if strings.Contains(haystack, kw) {
			return clickClassification{Tracked: true, Reason: "keyword"}
		}
	}

	if el.Href != "" {
		href := strings.ToLower(el.Href)
		for _, fragment := range highValueHrefFragments {
			if strings.Contains(href, fragment) {
				return clickClassification{Tracked: true, Reason: "href"}
			}
		}
	}

	return clickClassification{}
}

func matchesSelector(el page.Element, selector string) bool {
	return page.MatchesSelector(el, selector)
}
