package rank

import (
	"strings"

	"github.com/linkmeAman/JHuntAutomator/internal/config"
	"github.com/linkmeAman/JHuntAutomator/internal/domain"
)

const (
	TitleWeight    = 2.0
	BodyWeight     = 1.0
	LocationWeight = 0.5
)

// KeywordScorer scores a posting by keyword hits in its title and body and
// adds a bonus for a preferred location.
type KeywordScorer struct {
	Keywords  []string
	Locations []string
}

func FromSettings(s config.Settings) KeywordScorer {
	return KeywordScorer{Keywords: s.Keywords, Locations: s.Locations}
}

func (s KeywordScorer) Score(p domain.RawPosting) Relevance {
	title := strings.ToLower(p.Title)
	body := strings.ToLower(p.Description + " " + p.Requirements)

	rel := Relevance{}
	seen := map[string]bool{}
	for _, kw := range s.Keywords {
		kw = strings.TrimSpace(kw)
		needle := strings.ToLower(kw)
		if needle == "" || seen[needle] {
			continue
		}
		seen[needle] = true

		switch {
		case strings.Contains(title, needle):
			rel.Score += TitleWeight
		case strings.Contains(body, needle):
			rel.Score += BodyWeight
		default:
			continue
		}
		rel.Matched = append(rel.Matched, kw)
	}

	if len(rel.Matched) > 0 && s.locationMatches(p) {
		rel.Score += LocationWeight
	}
	return rel
}

func (s KeywordScorer) locationMatches(p domain.RawPosting) bool {
	loc := strings.ToLower(p.Location)
	for _, want := range s.Locations {
		w := strings.ToLower(strings.TrimSpace(want))
		if w == "" {
			continue
		}
		if w == "remote" && p.Remote {
			return true
		}
		if loc != "" && strings.Contains(loc, w) {
			return true
		}
	}
	return false
}
