package util

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

const maxDescriptionLen = 20000

var reTags = regexp.MustCompile(`(?is)<[^>]+>`)

func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

func NormalizeLocation(loc string) string {
	loc = CleanText(loc)
	if loc == "" {
		return ""
	}

	loc = strings.TrimPrefix(loc, "Location:")
	loc = strings.TrimPrefix(loc, "LOCATIONS:")
	loc = strings.TrimSpace(loc)

	parts := strings.Split(loc, ",")
	seen := map[string]bool{}
	var out []string
	for _, p := range parts {
		p = CleanText(p)
		if p == "" {
			continue
		}
		k := strings.ToLower(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return strings.Join(out, ", ")
}

func InferWorkModeFromText(location, title, desc string) string {
	blob := strings.ToLower(strings.Join([]string{location, title, desc}, " "))

	switch {
	case strings.Contains(blob, "remote"):
		return "Remote"
	case strings.Contains(blob, "hybrid"):
		return "Hybrid"
	case strings.Contains(blob, "on-site") || strings.Contains(blob, "onsite") || strings.Contains(blob, "on site"):
		return "Onsite"
	default:
		return "Unknown"
	}
}

// IsRemote looks only at location and title; descriptions mention
// "remote" too often to be trusted.
func IsRemote(location, title string) bool {
	return InferWorkModeFromText(location, title, "") == "Remote"
}

// DescriptionMarkdown turns a job description in HTML into markdown. Plain
// text passes through cleaned. baseURL resolves relative links.
func DescriptionMarkdown(raw, baseURL string) string {
	raw = strings.TrimSpace(html.UnescapeString(raw))
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "<") {
		return clip(raw, maxDescriptionLen)
	}
	conv := md.NewConverter(baseURL, true, nil)
	out, err := conv.ConvertString(raw)
	if err != nil {
		out = CleanText(reTags.ReplaceAllString(raw, " "))
	}
	return clip(strings.TrimSpace(out), maxDescriptionLen)
}

// StripTags is the plain-text fallback for short HTML fragments.
func StripTags(s string) string {
	return CleanText(html.UnescapeString(reTags.ReplaceAllString(s, " ")))
}

var dateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate accepts the date shapes job boards use, including unix seconds
// and milliseconds. The zero time means unknown.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC()
		}
		return time.Unix(n, 0).UTC()
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// DatePtr returns nil for the zero time.
func DatePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func clip(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}
