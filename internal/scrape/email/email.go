// Package email imports LinkedIn job alert emails over IMAP.
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/linkmeAman/JHuntAutomator/internal/config"
	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/types"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/util"
	"github.com/linkmeAman/JHuntAutomator/internal/secrets"
)

const (
	defaultLookback  = 14 * 24 * time.Hour
	defaultMaxEmails = 30
)

type Importer struct {
	logger   arbor.ILogger
	Dial     DialFunc
	Password func(account string) (string, error)
	Now      func() time.Time
}

func NewImporter(logger arbor.ILogger) *Importer {
	return &Importer{
		logger:   logger,
		Dial:     DialIMAP,
		Password: secrets.IMAPPassword,
		Now:      time.Now,
	}
}

// Import searches unseen alert mail since the request window, turns every
// job card into a posting and marks processed messages seen.
func (im *Importer) Import(ctx context.Context, req types.FetchRequest, cfg config.LinkedInEmail) (types.FetchResult, error) {
	res := types.FetchResult{Cursor: req.Cursor.Clone()}
	if strings.TrimSpace(cfg.Username) == "" || strings.TrimSpace(cfg.IMAPHost) == "" {
		return res, util.BadConfig(errors.New("linkedin email import needs imap_host and username"))
	}
	password, err := im.Password(secrets.IMAPKeyringAccount(cfg.Username, cfg.IMAPHost))
	if err != nil {
		return res, util.BadConfig(err)
	}

	since := req.Since
	if since.IsZero() {
		since = im.Now().Add(-defaultLookback)
	}
	max := cfg.MaxEmails
	if max <= 0 {
		max = defaultMaxEmails
	}

	mb, err := im.Dial(ctx, cfg, password)
	if err != nil {
		return res, err
	}
	defer func() {
		if err := mb.Close(); err != nil {
			im.logger.Debug().Str("source", domain.SourceLinkedIn).Err(err).Msg("imap close")
		}
	}()

	msgs, err := mb.Search(ctx, since, cfg.Query, max)
	if err != nil {
		return res, err
	}
	res.Metrics.RequestedPages = len(msgs)

	processed := make([]uint32, 0, len(msgs))
	seen := map[string]bool{}
	for _, m := range msgs {
		postings, err := im.parse(m)
		if err != nil {
			res.Metrics.AddError("email uid %d: %v", m.UID, err)
			continue
		}
		res.Metrics.PagesFetched++
		processed = append(processed, m.UID)
		for _, p := range postings {
			if seen[p.URL] {
				continue
			}
			seen[p.URL] = true
			res.Postings = append(res.Postings, p)
		}
	}
	res.Postings = util.Cap(res.Postings, req.MaxJobs)
	res.Metrics.Notes = append(res.Metrics.Notes, fmt.Sprintf("emails_scanned:%d", len(msgs)))

	if cfg.MarkSeen && len(processed) > 0 {
		if err := mb.MarkSeen(ctx, processed); err != nil {
			res.Metrics.AddError("mark seen: %v", err)
			im.logger.Warn().Str("source", domain.SourceLinkedIn).Err(err).Msg("imap mark seen failed")
		}
	}

	im.logger.Info().
		Str("source", domain.SourceLinkedIn).
		Int("emails", len(msgs)).
		Int("postings", len(res.Postings)).
		Msg("linkedin email import done")
	return res, nil
}

// parse turns one message into postings. Messages that are not job alerts
// yield nothing. When the HTML has no parseable cards the first LinkedIn link
// of the body becomes a single posting titled by the subject.
func (im *Importer) parse(m Message) ([]domain.RawPosting, error) {
	body, err := ParseMessage(m.Raw)
	if err != nil {
		return nil, err
	}
	subject := util.CleanText(firstNonEmpty(body.Subject, m.Subject))
	from := firstNonEmpty(body.From, m.From)
	received := body.Date
	if received.IsZero() {
		received = m.Date
	}
	all := body.HTML + "\n" + body.Text
	if !looksLikeAlert(from, subject, all) {
		return nil, nil
	}

	meta := func() domain.Metadata {
		md := domain.Metadata{
			"email_uid": domain.Int(int(m.UID)),
			"subject":   domain.String(subject),
		}
		if body.MessageID != "" {
			md["message_id"] = domain.String(body.MessageID)
		}
		return md
	}

	var out []domain.RawPosting
	if body.HTML != "" {
		jobs, err := ParseAlertHTML(body.HTML)
		if err != nil {
			return nil, err
		}
		for _, j := range jobs {
			md := meta()
			md["linkedin_id"] = domain.String(j.JobID)
			desc := []string{subject}
			if j.Company != "" || j.Location != "" {
				desc = append(desc, strings.Trim(j.Company+" · "+j.Location, " ·"))
			}
			if j.Salary != "" {
				md["salary"] = domain.String(j.Salary)
				desc = append(desc, j.Salary)
			}
			out = append(out, domain.RawPosting{
				Title:       j.Title,
				Company:     j.Company,
				Location:    j.Location,
				Description: strings.Join(desc, "\n"),
				URL:         j.URL,
				Source:      domain.SourceLinkedIn,
				Remote:      util.IsRemote(j.Location, j.Title),
				PostedAt:    util.DatePtr(received),
				Meta:        md,
			})
		}
	}
	if len(out) > 0 {
		return out, nil
	}

	links := LinkedInLinks(body.Text)
	if len(links) == 0 {
		links = LinkedInLinks(body.HTML)
	}
	if len(links) == 0 {
		return nil, nil
	}
	md := meta()
	md["urls"] = domain.Strings(links...)
	title := subject
	if title == "" {
		title = "LinkedIn Job Alert"
	}
	return []domain.RawPosting{{
		Title:       title,
		Description: subject,
		URL:         links[0],
		Source:      domain.SourceLinkedIn,
		Remote:      true,
		PostedAt:    util.DatePtr(received),
		Meta:        md,
	}}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
