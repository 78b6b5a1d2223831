package analytics

import (
	"github.com/mssola/useragent"

	"github.com/seentics/seentics-go/internal/page"
)

// deviceProfile is the per-page-load enrichment attached to every event.
// Parsing a user agent string is not free, so it happens once, off the
// interaction path, and is cached for the page lifetime.
type deviceProfile struct {
	Browser string
	OS      string
	Device  string
}

func profileFromUserAgent(uaString string, viewportWidth int) deviceProfile {
	profile := deviceProfile{Device: page.DeviceTypeFor(viewportWidth)}
	if uaString == "" {
		return profile
	}

	ua := useragent.New(uaString)
	browser, _ := ua.Browser()
	profile.Browser = browser
	profile.OS = ua.OS()
	if ua.Mobile() {
		profile.Device = "mobile"
	}
	return profile
}
