// Package device turns a User-Agent header into a display name for sessions.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// ParseUserAgent returns "<Browser> on <OS>", e.g. "Chrome on macOS".
func ParseUserAgent(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return unknownDevice
	}
	ua := useragent.New(userAgent)

	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}

	os := ua.OSInfo().Name
	switch {
	case strings.Contains(userAgent, "iPhone"):
		os = "iPhone"
	case strings.Contains(userAgent, "iPad"):
		os = "iPad"
	case os == "Mac OS X":
		os = "macOS"
	case os == "":
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}
