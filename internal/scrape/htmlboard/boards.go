package htmlboard

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/linkmeAman/JHuntAutomator/internal/domain"
)

// Selectors list CSS selectors per field; the first one that matches wins.
type Selectors struct {
	Card        string
	Title       []string
	Link        []string
	Company     []string
	Location    []string
	Description []string
}

// Board describes one HTML job board.
type Board struct {
	ID              string
	Selectors       Selectors
	DefaultLocation string
	Remote          bool
	// Searchable boards get one page per generated query.
	Searchable bool
	// Regional boards cross queries with cities in India mode.
	Regional bool
	PageURL  func(base, query string) string
	Base     string
}

func slugQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), "-"))
}

var RemoteCo = Board{
	ID:   domain.SourceRemoteCo,
	Base: "https://remote.co",
	Selectors: Selectors{
		Card:        "li.card",
		Title:       []string{"a"},
		Link:        []string{"a"},
		Company:     []string{".company"},
		Location:    []string{".location", ".tag"},
		Description: []string{"p", ".description"},
	},
	DefaultLocation: "Remote",
	Remote:          true,
	PageURL: func(base, _ string) string {
		return base + "/remote-jobs/developer/"
	},
}

var Naukri = Board{
	ID:   domain.SourceNaukri,
	Base: "https://www.naukri.com",
	Selectors: Selectors{
		Card:        "article",
		Title:       []string{"a.title", "a[href]"},
		Link:        []string{"a.title", "a[href]"},
		Company:     []string{".comp-name", ".company-name"},
		Location:    []string{".loc", ".location"},
		Description: []string{".job-desc", "p"},
	},
	DefaultLocation: "India",
	Searchable:      true,
	Regional:        true,
	PageURL: func(base, q string) string {
		return fmt.Sprintf("%s/%s-jobs", base, url.PathEscape(slugQuery(q)))
	},
}

var Shine = Board{
	ID:   domain.SourceShine,
	Base: "https://www.shine.com",
	Selectors: Selectors{
		Card:        "li",
		Title:       []string{"a"},
		Link:        []string{"a"},
		Company:     []string{".jobListCompanyName", ".jobCardCompanyName"},
		Location:    []string{".jobCardLocation", ".jobListLocation"},
		Description: []string{".jobCardDesc"},
	},
	DefaultLocation: "India",
	Searchable:      true,
	Regional:        true,
	PageURL: func(base, q string) string {
		return fmt.Sprintf("%s/job-search/%s-jobs", base, url.PathEscape(slugQuery(q)))
	},
}

var TimesJobs = Board{
	ID:   domain.SourceTimesJobs,
	Base: "https://www.timesjobs.com",
	Selectors: Selectors{
		Card:        "li.clearfix.job-bx",
		Title:       []string{"h2 a"},
		Link:        []string{"h2 a"},
		Company:     []string{".company-name", ".joblist-comp-name"},
		Location:    []string{".loc"},
		Description: []string{"ul"},
	},
	DefaultLocation: "India",
	Searchable:      true,
	Regional:        true,
	PageURL: func(base, q string) string {
		return fmt.Sprintf("%s/candidate/job-search.html?searchType=personalizedSearch&from=submit&txtKeywords=%s",
			base, url.QueryEscape(slugQuery(q)))
	},
}

var Indeed = Board{
	ID:   domain.SourceIndeed,
	Base: "https://www.indeed.com",
	Selectors: Selectors{
		Card:        "div.job_seen_beacon",
		Title:       []string{"h2.jobTitle span"},
		Link:        []string{"a.jcs-JobTitle"},
		Company:     []string{"span.companyName", "[data-testid='company-name']"},
		Location:    []string{"div.companyLocation", "[data-testid='text-location']"},
		Description: []string{"div.job-snippet"},
	},
	Searchable: true,
	PageURL: func(base, q string) string {
		return fmt.Sprintf("%s/jobs?q=%s&sort=date", base, url.QueryEscape(q))
	},
}

// All lists the HTML boards in registry order.
var All = []Board{RemoteCo, Naukri, Shine, TimesJobs, Indeed}
