package jobboard

import (
	"encoding/xml"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/util"
)

const WeWorkRemotelyURL = "https://weworkremotely.com/categories/remote-programming-jobs.rss"

func NewWeWorkRemotely(c *util.Client, logger arbor.ILogger) *Adapter {
	return &Adapter{id: domain.SourceWeWorkRemotely, feedURL: WeWorkRemotelyURL, parse: parseWeWorkRemotely, client: c, logger: logger}
}

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
	Region      string `xml:"region"`
	Category    string `xml:"category"`
	Type        string `xml:"type"`
	Description string `xml:"description"`
}

// parseWeWorkRemotely splits "Company: Title" item titles.
func parseWeWorkRemotely(body []byte) ([]domain.RawPosting, error) {
	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, err
	}
	out := make([]domain.RawPosting, 0, len(feed.Channel.Items))
	for _, it := range feed.Channel.Items {
		title := util.CleanText(it.Title)
		company := "WeWorkRemotely"
		if co, t, ok := strings.Cut(title, ":"); ok {
			if co = strings.TrimSpace(co); co != "" {
				company = co
			}
			if t = strings.TrimSpace(t); t != "" {
				title = t
			}
		}
		link := strings.TrimSpace(it.Link)
		if link == "" {
			link = strings.TrimSpace(it.GUID)
		}
		if title == "" || link == "" {
			continue
		}
		out = append(out, domain.RawPosting{
			Title:       title,
			Company:     company,
			Location:    orDefault(it.Region, "Remote"),
			Description: orDefault(util.DescriptionMarkdown(it.Description, link), title),
			URL:         link,
			Source:      domain.SourceWeWorkRemotely,
			Remote:      true,
			PostedAt:    util.DatePtr(util.ParseDate(it.PubDate)),
			Meta: domain.Metadata{
				"category": domain.String(it.Category),
				"type":     domain.String(it.Type),
			},
		})
	}
	return out, nil
}
