package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/linkmeAman/JHuntAutomator/internal/config"
	"github.com/linkmeAman/JHuntAutomator/internal/domain"
)

type recordSender struct {
	chats []int64
	msgs  []string
	err   error
}

func (r *recordSender) Send(_ context.Context, chatID int64, text string) error {
	r.chats = append(r.chats, chatID)
	r.msgs = append(r.msgs, text)
	return r.err
}

func TestRunAlert(t *testing.T) {
	clean := domain.CrawlRun{RunID: "abcdef123456", FetchedCount: 10, InsertedNewCount: 2}
	assert.Empty(t, RunAlert(clean))

	failed := clean
	failed.SourcesFailed = []domain.SourceFailure{{Source: "remoteok", Error: "timeout: source exceeded 2m0s"}}
	msg := RunAlert(failed)
	assert.Contains(t, msg, "abcdef12")
	assert.Contains(t, msg, "remoteok: timeout")

	empty := domain.CrawlRun{RunID: "r1", FetchedCount: 4}
	assert.Contains(t, RunAlert(empty), "No new jobs")
}

func TestDigestFiltersAndOrders(t *testing.T) {
	jobs := []domain.Job{
		{Title: "Low", RelevanceScore: 0.5, URL: "https://x/1"},
		{Title: "Go <Lead>", Company: "Acme", RelevanceScore: 3, URL: "https://x/2"},
		{Title: "Mid", RelevanceScore: 1.5, URL: "https://x/3"},
	}
	msg := Digest(jobs, 1)
	require.NotEmpty(t, msg)
	assert.Contains(t, msg, "2 new matching jobs")
	assert.NotContains(t, msg, "Low")
	assert.Contains(t, msg, "Go &lt;Lead&gt; · Acme")
	assert.Less(t, strings.Index(msg, "Go &lt;Lead&gt;"), strings.Index(msg, "Mid"))

	assert.Empty(t, Digest(jobs, 10))
}

func TestRunFinishedRespectsSettings(t *testing.T) {
	s := &recordSender{}
	n := New(s, arbor.NewLogger())
	run := domain.CrawlRun{RunID: "r1", SourcesFailed: []domain.SourceFailure{{Source: "naukri", Error: "blocked"}}}
	fresh := []domain.Job{{Title: "Go Engineer", RelevanceScore: 2, URL: "https://x/1"}}

	require.NoError(t, n.RunFinished(context.Background(), config.Notifications{Enabled: false, TelegramChatID: 5}, run, fresh))
	assert.Empty(t, s.msgs)

	cfg := config.Notifications{Enabled: true, TelegramChatID: 5, MinScore: 1, RunAlerts: true}
	require.NoError(t, n.RunFinished(context.Background(), cfg, run, fresh))
	require.Len(t, s.msgs, 2)
	assert.Equal(t, []int64{5, 5}, s.chats)

	s.err = errors.New("telegram down")
	err := n.RunFinished(context.Background(), cfg, run, fresh)
	assert.ErrorContains(t, err, "telegram down")
}
