package rank

import (
	"strings"

	"github.com/linkmeAman/JHuntAutomator/internal/domain"
)

type Relevance struct {
	Score   float64
	Matched []string
}

// KeywordsMatched is the stored form of Matched.
func (r Relevance) KeywordsMatched() string {
	return strings.Join(r.Matched, ", ")
}

type Scorer interface {
	Score(p domain.RawPosting) Relevance
}
