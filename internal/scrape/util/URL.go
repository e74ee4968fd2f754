package util

import (
	"net/url"
	"strings"
)

// AbsURL resolves href against base. Unparseable input comes back trimmed.
func AbsURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return ref.String()
	}
	return b.ResolveReference(ref).String()
}

// URLIsTooGeneric flags links that point at alert or search pages rather
// than a posting.
func URLIsTooGeneric(u string) bool {
	lu := strings.ToLower(u)

	if strings.Contains(lu, "linkedin.com/comm/jobs/alerts") {
		return true
	}
	if strings.HasSuffix(strings.TrimRight(lu, "/"), "/jobs") {
		return true
	}

	return false
}

// Host returns the lowercased host of raw, or "".
func Host(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
