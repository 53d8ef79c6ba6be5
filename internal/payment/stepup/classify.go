// Package stepup drives the 3-D Secure challenge shown in the rider's web view:
// it renders the auto-submit document and classifies the URLs the view navigates to.
package stepup

import "strings"

// Classification is what a navigation (or a user action) says about the challenge.
type Classification string

const (
	Success       Classification = "success"
	Failure       Classification = "failure"
	Cancelled     Classification = "cancelled"
	Indeterminate Classification = "indeterminate"
	// Ignored covers blank pages and the challenge URL itself.
	Ignored Classification = "ignored"
)

var (
	failureMarkers = []string{"fail", "cancel", "error"}
	successMarkers = []string{"success", "approved", "complete"}
)

// Classify maps a navigated URL to a classification. Matching is a case-insensitive
// substring test; failure markers win over success markers.
func Classify(url, redirectURL string) Classification {
	u := strings.TrimSpace(url)
	if u == "" || strings.EqualFold(u, "about:blank") || sameURL(u, redirectURL) {
		return Ignored
	}
	lower := strings.ToLower(u)
	for _, m := range failureMarkers {
		if strings.Contains(lower, m) {
			return Failure
		}
	}
	for _, m := range successMarkers {
		if strings.Contains(lower, m) {
			return Success
		}
	}
	return Indeterminate
}

func sameURL(a, b string) bool {
	b = strings.TrimSpace(b)
	if b == "" {
		return false
	}
	return strings.EqualFold(strings.TrimRight(a, "/"), strings.TrimRight(b, "/"))
}
