package config

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/linkmeAman/JHuntAutomator/internal/domain"
)

var defaultKeywords = []string{
	"Python", "JavaScript", "React", "Node.js", "FastAPI",
	"Software Engineer", "Full Stack", "Backend", "Frontend",
	"DevOps", "Data Engineer", "Machine Learning", "AI",
}

var reSlug = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

const defaultLinkedInQuery = `FROM "jobalerts-noreply@linkedin.com"`

func defaultLinkedInEmail() LinkedInEmail {
	return LinkedInEmail{
		IMAPHost:  "imap.gmail.com",
		IMAPPort:  993,
		Mailbox:   "INBOX",
		Query:     defaultLinkedInQuery,
		MaxEmails: 30,
		MarkSeen:  true,
	}
}

func defaultLinkedInCrawl() LinkedInCrawl {
	return LinkedInCrawl{
		Allowed:     false,
		MaxPages:    2,
		MinDelaySec: 3,
	}
}

// Default returns the settings a fresh install starts with.
func Default() Settings {
	sources := make(map[string]bool, len(domain.KnownSources))
	for _, id := range domain.KnownSources {
		sources[id] = false
	}
	sources[domain.SourceGreenhouse] = true
	sources[domain.SourceRemoteOK] = true
	sources[domain.SourceWeWorkRemotely] = true

	email := defaultLinkedInEmail()
	crawl := defaultLinkedInCrawl()
	return Settings{
		Keywords:  append([]string(nil), defaultKeywords...),
		Locations: []string{"Remote", "United States"},
		Sources:   sources,
		GreenhouseBoards: []Board{
			BoardFromSlug(domain.SourceGreenhouse, "gitlab"),
			BoardFromSlug(domain.SourceGreenhouse, "zapier"),
			BoardFromSlug(domain.SourceGreenhouse, "datadog"),
		},
		LinkedInMode:  LinkedInModeEmail,
		LinkedInEmail: &email,
		LinkedInCrawl: &crawl,
		CrawlHour:     7,
		CrawlMinute:   0,
		Notifications: Notifications{MinScore: 2, RunAlerts: true},
	}
}

// ApplyDefaults fills in what older settings files did not carry: the
// LinkedIn sub-configs, the mode, the sources map and board URLs given as
// bare slugs.
func ApplyDefaults(s *Settings) {
	if s.Sources == nil {
		s.Sources = map[string]bool{}
	}
	if strings.TrimSpace(s.LinkedInMode) == "" {
		s.LinkedInMode = LinkedInModeEmail
	}
	if s.LinkedInEmail == nil {
		e := defaultLinkedInEmail()
		s.LinkedInEmail = &e
	} else {
		fillLinkedInEmail(s.LinkedInEmail)
	}
	if s.LinkedInCrawl == nil {
		c := defaultLinkedInCrawl()
		s.LinkedInCrawl = &c
	} else if s.LinkedInCrawl.MaxPages == 0 {
		s.LinkedInCrawl.MaxPages = defaultLinkedInCrawl().MaxPages
	}
	s.GreenhouseBoards = normalizeBoards(domain.SourceGreenhouse, s.GreenhouseBoards)
	s.LeverBoards = normalizeBoards(domain.SourceLever, s.LeverBoards)
	s.SmartRecruitersBoards = normalizeBoards(domain.SourceSmartRecruiters, s.SmartRecruitersBoards)
	s.WorkdayBoards = normalizeBoards(domain.SourceWorkday, s.WorkdayBoards)
}

func fillLinkedInEmail(e *LinkedInEmail) {
	d := defaultLinkedInEmail()
	if strings.TrimSpace(e.IMAPHost) == "" {
		e.IMAPHost = d.IMAPHost
	}
	if e.IMAPPort == 0 {
		e.IMAPPort = d.IMAPPort
	}
	if strings.TrimSpace(e.Mailbox) == "" {
		e.Mailbox = d.Mailbox
	}
	if strings.TrimSpace(e.Query) == "" {
		e.Query = d.Query
	}
	if e.MaxEmails == 0 {
		e.MaxEmails = d.MaxEmails
	}
}

// BoardFromSlug builds the canonical board entry for a bare company slug.
// SmartRecruiters company identifiers are case sensitive and kept as given.
func BoardFromSlug(source, slug string) Board {
	slug = strings.Trim(strings.TrimSpace(slug), "/")
	base, id := "https://boards.greenhouse.io/", strings.ToLower(slug)
	switch source {
	case domain.SourceLever:
		base = "https://jobs.lever.co/"
	case domain.SourceSmartRecruiters:
		base, id = "https://jobs.smartrecruiters.com/", slug
	}
	return Board{Name: titleCase(slug), BoardURL: base + id}
}

func normalizeBoards(source string, in []Board) []Board {
	out := make([]Board, 0, len(in))
	seen := map[string]bool{}
	for _, b := range in {
		b.Name = strings.TrimSpace(b.Name)
		b.BoardURL = strings.TrimSpace(b.BoardURL)
		switch {
		case b.BoardURL == "" && b.Name == "":
			continue
		case source == domain.SourceWorkday:
			// no canonical URL to derive from a slug
		case b.BoardURL == "" && reSlug.MatchString(b.Name):
			b = BoardFromSlug(source, b.Name)
		case b.BoardURL == "":
			// left for validation to reject
		case reSlug.MatchString(b.BoardURL):
			name := b.Name
			b = BoardFromSlug(source, b.BoardURL)
			if name != "" {
				b.Name = name
			}
		}
		if b.Name == "" {
			b.Name = titleCase(b.Slug())
		}
		key := strings.ToLower(strings.TrimRight(b.BoardURL, "/"))
		if key != "" && seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, b)
	}
	return out
}

func titleCase(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' || unicode.IsSpace(r) })
	for i, w := range words {
		rs := []rune(strings.ToLower(w))
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	return strings.Join(words, " ")
}
