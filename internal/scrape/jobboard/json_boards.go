package jobboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/util"
)

const (
	RemotiveURL      = "https://remotive.com/api/remote-jobs"
	WorkingNomadsURL = "https://www.workingnomads.com/api/exposed_jobs/"
	RemoteOKURL      = "https://remoteok.com/api"
)

func NewRemotive(c *util.Client, logger arbor.ILogger) *Adapter {
	return &Adapter{
		id: domain.SourceRemotive, feedURL: RemotiveURL, search: "search",
		parse: parseRemotive, client: c, logger: logger,
		QueryVariants: 1, MaxQueries: 6,
	}
}

func NewWorkingNomads(c *util.Client, logger arbor.ILogger) *Adapter {
	return &Adapter{id: domain.SourceWorkingNomads, feedURL: WorkingNomadsURL, parse: parseWorkingNomads, client: c, logger: logger}
}

func NewRemoteOK(c *util.Client, logger arbor.ILogger) *Adapter {
	return &Adapter{id: domain.SourceRemoteOK, feedURL: RemoteOKURL, parse: parseRemoteOK, client: c, logger: logger}
}

// flexString accepts a JSON string or number; boards are not consistent
// about ids.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(string(b))
	return nil
}

// flexList accepts a JSON list of strings or one comma separated string.
type flexList []string

func (f *flexList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '[' {
		var l []string
		if err := json.Unmarshal(b, &l); err != nil {
			return err
		}
		*f = l
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*f = append(*f, part)
		}
	}
	return nil
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

type remotiveJob struct {
	ID                        flexString `json:"id"`
	URL                       string     `json:"url"`
	Title                     string     `json:"title"`
	CompanyName               string     `json:"company_name"`
	Category                  string     `json:"category"`
	JobType                   string     `json:"job_type"`
	PublicationDate           string     `json:"publication_date"`
	CandidateRequiredLocation string     `json:"candidate_required_location"`
	Description               string     `json:"description"`
}

func parseRemotive(body []byte) ([]domain.RawPosting, error) {
	var payload struct {
		Jobs []remotiveJob `json:"jobs"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	out := make([]domain.RawPosting, 0, len(payload.Jobs))
	for _, j := range payload.Jobs {
		if strings.TrimSpace(j.Title) == "" || j.URL == "" {
			continue
		}
		out = append(out, domain.RawPosting{
			Title:       j.Title,
			Company:     j.CompanyName,
			Location:    orDefault(j.CandidateRequiredLocation, "Remote"),
			Description: orDefault(util.DescriptionMarkdown(j.Description, j.URL), j.Title),
			URL:         j.URL,
			Source:      domain.SourceRemotive,
			Remote:      true,
			PostedAt:    util.DatePtr(util.ParseDate(j.PublicationDate)),
			Meta: domain.Metadata{
				"category":    domain.String(j.Category),
				"job_type":    domain.String(j.JobType),
				"remotive_id": domain.String(string(j.ID)),
			},
		})
	}
	return out, nil
}

type workingNomadsJob struct {
	ID           flexString `json:"id"`
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	CompanyName  string     `json:"company_name"`
	CategoryName string     `json:"category_name"`
	Tags         flexList   `json:"tags"`
	Location     string     `json:"location"`
	PubDate      string     `json:"pub_date"`
	Description  string     `json:"description"`
}

func parseWorkingNomads(body []byte) ([]domain.RawPosting, error) {
	var jobs []workingNomadsJob
	if err := json.Unmarshal(body, &jobs); err != nil {
		return nil, err
	}
	out := make([]domain.RawPosting, 0, len(jobs))
	for _, j := range jobs {
		if strings.TrimSpace(j.Title) == "" || j.URL == "" {
			continue
		}
		out = append(out, domain.RawPosting{
			Title:        j.Title,
			Company:      j.CompanyName,
			Location:     orDefault(j.Location, "Remote"),
			Description:  orDefault(util.DescriptionMarkdown(j.Description, j.URL), j.Title),
			Requirements: strings.Join(j.Tags, ", "),
			URL:          j.URL,
			Source:       domain.SourceWorkingNomads,
			Remote:       true,
			PostedAt:     util.DatePtr(util.ParseDate(j.PubDate)),
			Meta: domain.Metadata{
				"category": domain.String(j.CategoryName),
				"tags":     domain.Strings(j.Tags...),
				"wn_id":    domain.String(string(j.ID)),
			},
		})
	}
	return out, nil
}

type remoteOKJob struct {
	ID          flexString `json:"id"`
	Slug        string     `json:"slug"`
	Epoch       flexString `json:"epoch"`
	Date        string     `json:"date"`
	Company     string     `json:"company"`
	Position    string     `json:"position"`
	Tags        flexList   `json:"tags"`
	Location    string     `json:"location"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	ApplyURL    string     `json:"apply_url"`
}

// parseRemoteOK skips the leading legal notice element, which has no
// position.
func parseRemoteOK(body []byte) ([]domain.RawPosting, error) {
	var jobs []remoteOKJob
	if err := json.Unmarshal(body, &jobs); err != nil {
		return nil, err
	}
	out := make([]domain.RawPosting, 0, len(jobs))
	for _, j := range jobs {
		if strings.TrimSpace(j.Position) == "" {
			continue
		}
		link := j.URL
		if link == "" && j.Slug != "" {
			link = fmt.Sprintf("https://remoteok.com/remote-jobs/%s", j.Slug)
		}
		if link == "" {
			continue
		}
		posted := util.ParseDate(j.Date)
		if posted.IsZero() {
			posted = util.ParseDate(string(j.Epoch))
		}
		out = append(out, domain.RawPosting{
			Title:        j.Position,
			Company:      j.Company,
			Location:     orDefault(j.Location, "Remote"),
			Description:  orDefault(util.DescriptionMarkdown(j.Description, link), j.Position),
			Requirements: strings.Join(j.Tags, ", "),
			URL:          link,
			Source:       domain.SourceRemoteOK,
			Remote:       true,
			PostedAt:     util.DatePtr(posted),
			Meta: domain.Metadata{
				"tags":        domain.Strings(j.Tags...),
				"remoteok_id": domain.String(string(j.ID)),
			},
		})
	}
	return out, nil
}
