package util

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func LooksLikeJunkTitle(t string) bool {
	l := strings.ToLower(t)
	return l == "" || strings.HasPrefix(l, "view") || strings.HasPrefix(l, "apply") || strings.Contains(l, "see all jobs")
}

var locationSelectors = []string{
	".location",
	".companyLocation",
	".job__location",
	".posting-categories .location",
	"[itemprop='jobLocation']",
	"[data-qa='location']",
	"[data-testid='job-location']",
	"[data-testid='location']",
}

// FindLocation looks for a location inside a job page or card, falling back
// to "Location:" labels in the text.
func FindLocation(sel *goquery.Selection) string {
	for _, q := range locationSelectors {
		if t := CleanText(sel.Find(q).First().Text()); t != "" {
			return NormalizeLocation(t)
		}
	}

	if v, ok := sel.Find(`meta[property="og:description"]`).Attr("content"); ok {
		if loc := ExtractLocationFromLabeledText(v); loc != "" {
			return NormalizeLocation(loc)
		}
	}

	if loc := ExtractLocationFromLabeledText(sel.Text()); loc != "" {
		return NormalizeLocation(loc)
	}
	return ""
}

// ExtractLocationFromLabeledText takes the text after a "Location:" label.
func ExtractLocationFromLabeledText(s string) string {
	low := strings.ToLower(s)

	for _, lab := range []string{"job location:", "locations:", "location:"} {
		i := strings.Index(low, lab)
		if i < 0 {
			continue
		}
		rest := strings.TrimSpace(s[i+len(lab):])
		for _, cut := range []string{"\n", "\r", " | ", " · "} {
			if j := strings.Index(rest, cut); j >= 0 {
				rest = rest[:j]
			}
		}
		if rest = CleanText(rest); rest != "" && len(rest) <= 80 {
			return rest
		}
	}
	return ""
}
