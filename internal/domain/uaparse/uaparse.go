// Package uaparse identifies browser, operating system and device class from a
// user-agent string.
package uaparse

import (
	"strings"

	"github.com/mssola/useragent"
)

// Defaults reported when nothing matches.
const (
	UnknownBrowser = "Unknown Browser"
	UnknownOS      = "Unknown OS"
)

// DeviceClass is the coarse form factor.
type DeviceClass string

// Device classes.
const (
	Mobile  DeviceClass = "mobile"
	Tablet  DeviceClass = "tablet"
	Desktop DeviceClass = "desktop"
)

// phoneMaxWidth is the widest portrait viewport still treated as a phone.
const phoneMaxWidth = 480

// browserRule maps user-agent tokens to a browser identity.
type browserRule struct {
	name   string
	tokens []string
}

// browserRules is checked in order and the first match wins. Derived engines
// come before the engines whose tokens they also carry: every Chrome user agent
// contains "Safari/", and Edge/Opera/Samsung carry "Chrome/".
var browserRules = []browserRule{
	{name: "Edge", tokens: []string{"Edg/", "EdgA/", "EdgiOS/", "Edge/"}},
	{name: "Opera", tokens: []string{"OPR/", "Opera"}},
	{name: "Samsung Internet", tokens: []string{"SamsungBrowser/"}},
	{name: "Firefox", tokens: []string{"Firefox/", "FxiOS/"}},
	{name: "Chromium", tokens: []string{"Chromium/"}},
	{name: "Chrome", tokens: []string{"Chrome/", "CriOS/"}},
	{name: "Safari", tokens: []string{"Safari/"}},
	{name: "Internet Explorer", tokens: []string{"MSIE ", "Trident/"}},
}

var tabletTokens = []string{"iPad", "Tablet", "Kindle", "Silk/", "PlayBook"}

// Browser is the identified browser.
type Browser struct {
	Name    string
	Version string
}

// String returns the browser name.
func (b Browser) String() string { return b.Name }

// Platform is the identified operating system.
type Platform struct {
	Name    string
	Version string
}

// String returns "name version", or the name alone when the version is unknown.
func (p Platform) String() string {
	return strings.TrimSpace(p.Name + " " + p.Version)
}

// Result bundles everything derived from one user agent.
type Result struct {
	Browser Browser
	OS      Platform
	Mobile  bool
	Tablet  bool
}

// Parse inspects a user-agent string.
func Parse(ua string) Result {
	parsed := useragent.New(ua)
	info := parsed.OSInfo()

	res := Result{
		Browser: DetectBrowser(ua),
		OS:      Platform{Name: info.Name, Version: info.Version},
		Tablet:  isTablet(ua),
	}
	if res.OS.Name == "" {
		res.OS = Platform{Name: UnknownOS}
	}
	res.Mobile = parsed.Mobile() && !res.Tablet
	return res
}

// DetectBrowser applies the priority table to ua.
func DetectBrowser(ua string) Browser {
	for _, rule := range browserRules {
		for _, tok := range rule.tokens {
			idx := strings.Index(ua, tok)
			if idx < 0 {
				continue
			}
			version := tokenVersion(ua[idx+len(tok):])
			if rule.name == "Safari" {
				if i := strings.Index(ua, "Version/"); i >= 0 {
					version = tokenVersion(ua[i+len("Version/"):])
				}
			}
			return Browser{Name: rule.name, Version: version}
		}
	}
	return Browser{Name: UnknownBrowser}
}

// tokenVersion reads the version that follows a product token.
func tokenVersion(rest string) string {
	end := strings.IndexAny(rest, " ;)")
	if end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimPrefix(rest, "/")
}

func isTablet(ua string) bool {
	for _, tok := range tabletTokens {
		if strings.Contains(ua, tok) {
			return true
		}
	}
	return strings.Contains(ua, "Android") && !strings.Contains(ua, "Mobile")
}

// Classify picks the device class: mobile if the user agent or a narrow
// portrait viewport says phone, else tablet if the tablet heuristic matches,
// else desktop.
func Classify(r Result, width, height int) DeviceClass {
	switch {
	case r.Mobile:
		return Mobile
	case !r.Tablet && width > 0 && width <= phoneMaxWidth && height > width:
		return Mobile
	case r.Tablet:
		return Tablet
	default:
		return Desktop
	}
}
