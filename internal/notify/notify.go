// Package notify sends run alerts and new-job digests after a crawl.
package notify

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/linkmeAman/JHuntAutomator/internal/config"
	"github.com/linkmeAman/JHuntAutomator/internal/domain"
)

// maxDigestJobs bounds one digest message; Telegram caps messages at 4096
// characters.
const maxDigestJobs = 15

// Sender delivers one HTML formatted message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Nop is used when no bot token is configured.
type Nop struct{}

func (Nop) Send(context.Context, int64, string) error { return nil }

type Notifier struct {
	sender Sender
	logger arbor.ILogger
}

func New(sender Sender, logger arbor.ILogger) *Notifier {
	if sender == nil {
		sender = Nop{}
	}
	return &Notifier{sender: sender, logger: logger}
}

// RunFinished sends the run alert and the digest the settings ask for.
// Delivery errors are logged and returned joined; they never affect the run.
func (n *Notifier) RunFinished(ctx context.Context, cfg config.Notifications, run domain.CrawlRun, fresh []domain.Job) error {
	if !cfg.Enabled || cfg.TelegramChatID == 0 {
		return nil
	}
	var errs []string
	if cfg.RunAlerts {
		if msg := RunAlert(run); msg != "" {
			if err := n.sender.Send(ctx, cfg.TelegramChatID, msg); err != nil {
				errs = append(errs, "run alert: "+err.Error())
			}
		}
	}
	if msg := Digest(fresh, cfg.MinScore); msg != "" {
		if err := n.sender.Send(ctx, cfg.TelegramChatID, msg); err != nil {
			errs = append(errs, "digest: "+err.Error())
		}
	}
	if len(errs) > 0 {
		err := fmt.Errorf("notify: %s", strings.Join(errs, "; "))
		n.logger.Warn().Str("run_id", run.RunID).Err(err).Msg("notification failed")
		return err
	}
	return nil
}

// RunAlert describes a run that had failed sources or stored nothing new.
// It returns "" for a clean run.
func RunAlert(run domain.CrawlRun) string {
	if len(run.SourcesFailed) == 0 && run.InsertedNewCount > 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Crawl run %s</b>\n", html.EscapeString(shortID(run.RunID)))
	fmt.Fprintf(&b, "Fetched %d, new %d\n", run.FetchedCount, run.InsertedNewCount)
	if len(run.SourcesFailed) > 0 {
		b.WriteString("Failed sources:\n")
		for _, f := range run.SourcesFailed {
			fmt.Fprintf(&b, "• %s: %s\n", html.EscapeString(f.Source), html.EscapeString(clip(f.Error, 200)))
		}
	} else {
		b.WriteString("No new jobs found.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Digest lists new jobs scoring at least minScore, best first.
func Digest(jobs []domain.Job, minScore float64) string {
	var keep []domain.Job
	for _, j := range jobs {
		if j.RelevanceScore >= minScore {
			keep = append(keep, j)
		}
	}
	if len(keep) == 0 {
		return ""
	}
	sort.SliceStable(keep, func(i, k int) bool { return keep[i].RelevanceScore > keep[k].RelevanceScore })

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%d new matching jobs</b>\n", len(keep))
	for i, j := range keep {
		if i == maxDigestJobs {
			fmt.Fprintf(&b, "…and %d more\n", len(keep)-maxDigestJobs)
			break
		}
		line := html.EscapeString(j.Title)
		if j.Company != "" {
			line += " · " + html.EscapeString(j.Company)
		}
		if j.Location != "" {
			line += " · " + html.EscapeString(j.Location)
		}
		fmt.Fprintf(&b, "%.1f <a href=\"%s\">%s</a>\n", j.RelevanceScore, html.EscapeString(j.URL), line)
	}
	return strings.TrimRight(b.String(), "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
