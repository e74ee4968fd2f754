package email

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/linkmeAman/JHuntAutomator/internal/scrape/util"
)

// AlertJob is one job card of a LinkedIn job alert email.
type AlertJob struct {
	Title    string
	Company  string
	Location string
	Salary   string
	URL      string
	JobID    string
}

var (
	reSalary = regexp.MustCompile(`[$€£₹]\s?\d[\d,]*(?:K|M|L)?\s*(?:-\s*[$€£₹]\s?\d[\d,]*(?:K|M|L)?)?\s*/\s*(?:year|yr|month|hour)`)
	reJobID  = regexp.MustCompile(`/jobs/view/(\d+)`)
	reURL    = regexp.MustCompile(`https?://[^\s<>"']+`)
)

// ParseAlertHTML reads the job cards of an alert email. Several anchors
// usually point at the same job (logo, title, company line); they are merged
// by job id so the best title wins. Results keep first-seen order.
func ParseAlertHTML(htmlBody string) ([]AlertJob, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return nil, err
	}

	byKey := map[string]*AlertJob{}
	var order []string

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		jobURL := jobViewURL(strings.TrimSpace(href))
		if jobURL == "" {
			return
		}
		id := jobID(jobURL)
		key := id
		if key == "" {
			key = jobURL
		}

		j, ok := byKey[key]
		if !ok {
			j = &AlertJob{URL: jobURL, JobID: id}
			byKey[key] = j
			order = append(order, key)
		}

		if cand := stripTitleNoise(util.CleanText(a.Text())); betterTitle(cand, j.Title) {
			j.Title = cand
		}

		card := a.Closest("table")
		if card.Length() == 0 {
			card = a.Closest("tr")
		}
		if card.Length() == 0 {
			card = a.Parent()
		}

		card.Find("p").Each(func(_ int, p *goquery.Selection) {
			t := util.CleanText(p.Text())
			if t == "" {
				return
			}
			if j.Company == "" && j.Location == "" && strings.Contains(t, " · ") {
				parts := strings.SplitN(t, " · ", 2)
				j.Company = strings.TrimSpace(parts[0])
				j.Location = strings.TrimSpace(parts[1])
				return
			}
			if cand := stripTitleNoise(t); betterTitle(cand, j.Title) {
				j.Title = cand
			}
		})

		if j.Salary == "" {
			if m := reSalary.FindString(util.CleanText(card.Text())); m != "" {
				j.Salary = strings.TrimSpace(m)
			}
		}
	})

	out := make([]AlertJob, 0, len(order))
	for _, key := range order {
		j := byKey[key]
		if j.URL == "" || j.Title == "" {
			continue
		}
		out = append(out, *j)
	}
	return out, nil
}

// jobViewURL unwraps tracking redirects and returns a canonical
// https://www.linkedin.com/jobs/view/<id>/ link, or "" for anything that is
// not a LinkedIn job link.
func jobViewURL(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if raw := u.Query().Get("url"); raw != "" {
		if uu, err := url.Parse(raw); err == nil && uu.Host != "" {
			u = uu
		}
	}
	if strings.Contains(strings.ToLower(u.Host), "google.") && strings.HasPrefix(u.Path, "/url") {
		if q := u.Query().Get("q"); q != "" {
			if uu, err := url.Parse(q); err == nil && uu.Host != "" {
				u = uu
			}
		}
	}
	if !strings.Contains(strings.ToLower(u.Host), "linkedin.com") {
		return ""
	}
	if id := jobID(u.Path); id != "" {
		return "https://www.linkedin.com/jobs/view/" + id + "/"
	}
	return ""
}

func jobID(s string) string {
	if m := reJobID.FindStringSubmatch(s); len(m) == 2 {
		return m[1]
	}
	return ""
}

// LinkedInLinks returns the linkedin.com URLs of a plain text body in order.
func LinkedInLinks(body string) []string {
	var out []string
	seen := map[string]bool{}
	for _, u := range reURL.FindAllString(body, -1) {
		u = strings.TrimRight(u, ".,);:]\"'")
		if !strings.Contains(strings.ToLower(u), "linkedin.com") || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

func looksLikeAlert(from, subject, body string) bool {
	if strings.Contains(strings.ToLower(from), "jobalerts-noreply") {
		return true
	}
	s := strings.ToLower(subject)
	if strings.Contains(s, "job alert") || strings.Contains(s, "linkedin") || strings.Contains(s, "jobs") {
		return strings.Contains(strings.ToLower(body), "linkedin.com")
	}
	return false
}

func stripTitleNoise(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, b := range []string{"Actively recruiting", "Easy Apply", "Promoted"} {
		s = strings.TrimSpace(strings.ReplaceAll(s, b, ""))
	}
	low := strings.ToLower(s)
	for _, bad := range []string{"alumni", "connections", "applicants", "school"} {
		if strings.Contains(low, bad) {
			return ""
		}
	}
	if util.LooksLikeJunkTitle(s) {
		return ""
	}
	return strings.Join(strings.Fields(s), " ")
}

func betterTitle(candidate, current string) bool {
	c := strings.TrimSpace(candidate)
	if c == "" || strings.Contains(c, " · ") {
		return false
	}
	cur := strings.TrimSpace(current)
	if cur == "" {
		return titleScore(c) >= 5
	}
	cs, ks := titleScore(c), titleScore(cur)
	if ks >= 8 && cs < ks {
		return false
	}
	// require a clear gain to avoid flip-flopping between anchors
	return cs >= ks+3
}

var titleWords = []string{
	"engineer", "developer", "software", "backend", "frontend", "full stack", "full-stack",
	"platform", "cloud", "devops", "sre", "security", "embedded", "firmware",
	"data", "ml", "ai", "scientist", "analyst", "architect",
	"manager", "director", "lead", "principal", "staff", "intern", "technician",
}

// titleScore rates how much s looks like a job title rather than a salary,
// location or call to action.
func titleScore(s string) int {
	orig := strings.TrimSpace(s)
	if orig == "" {
		return -100
	}
	l := strings.ToLower(orig)
	if strings.Contains(l, "unsubscribe") || (strings.Contains(l, "manage") && strings.Contains(l, "alert")) {
		return -50
	}
	if strings.Contains(l, "http://") || strings.Contains(l, "https://") || strings.Contains(l, "www.") {
		return -30
	}

	score := 0
	if strings.ContainsAny(orig, "$€£₹") {
		score -= 8
	}
	for _, per := range []string{"per hour", "/hour", "/hr", "per year", "/year", "/yr"} {
		if strings.Contains(l, per) {
			score -= 6
			break
		}
	}
	for _, cta := range []string{"apply", "view job", "see job", "see details", "learn more", "sign in"} {
		if strings.Contains(l, cta) {
			score -= 6
		}
	}
	for _, loc := range []string{"remote", "hybrid", "on-site", "onsite", "united states", "india"} {
		if strings.Contains(l, loc) {
			score -= 3
		}
	}
	if strings.Contains(orig, "|") || strings.Contains(orig, "•") {
		score -= 2
	}
	for _, w := range titleWords {
		if strings.Contains(l, w) {
			score += 4
			break
		}
	}
	for _, w := range []string{"sr", "senior", "jr", "junior", "ii", "iii", "iv", "principal", "staff", "lead"} {
		if containsWord(l, w) {
			score += 2
		}
	}

	n := len([]rune(orig))
	switch {
	case n >= 6 && n <= 80:
		score += 2
	case n < 4 || n > 140:
		score -= 6
	}
	if strings.HasSuffix(orig, ".") || strings.Contains(l, "you will") || strings.Contains(l, "we are") {
		score -= 4
	}

	digits := 0
	for _, r := range orig {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits >= 6 {
		score -= 4
	}
	return score
}

// containsWord matches needle only on word boundaries, so "sr" does not
// match "sre".
func containsWord(haystack, needle string) bool {
	isBound := func(b byte) bool {
		switch b {
		case ' ', '\t', '\n', '\r', '-', '/', '\\', '(', ')', '[', ']', ',', '.', ':', ';', '|':
			return true
		}
		return false
	}
	for from := 0; ; {
		i := strings.Index(haystack[from:], needle)
		if i < 0 {
			return false
		}
		i += from
		end := i + len(needle)
		if (i == 0 || isBound(haystack[i-1])) && (end == len(haystack) || isBound(haystack[end])) {
			return true
		}
		from = i + 1
	}
}
