package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/linkmeAman/JHuntAutomator/internal/config"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/util"
)

// Message is one fetched email. Raw holds the full RFC 822 bytes, fetched
// with BODY.PEEK[] so the server does not set \Seen.
type Message struct {
	UID     uint32
	From    string
	Subject string
	Date    time.Time
	Raw     []byte
}

// Mailbox is the part of an IMAP session the importer needs.
type Mailbox interface {
	// Search returns up to max unseen messages since the given day that
	// match query, newest first.
	Search(ctx context.Context, since time.Time, query string, max int) ([]Message, error)
	MarkSeen(ctx context.Context, uids []uint32) error
	Close() error
}

// DialFunc opens a logged-in session with the configured mailbox selected.
type DialFunc func(ctx context.Context, cfg config.LinkedInEmail, password string) (Mailbox, error)

type imapMailbox struct {
	c    *imapclient.Client
	stop func() bool
}

// DialIMAP connects over TLS, logs in and selects the mailbox. A login
// failure is bad_config; dial errors are left for util.Classify.
func DialIMAP(ctx context.Context, cfg config.LinkedInEmail, password string) (Mailbox, error) {
	if cfg.IMAPHost == "" || cfg.Username == "" {
		return nil, util.BadConfig(errors.New("imap host and username are required"))
	}
	port := cfg.IMAPPort
	if port == 0 {
		port = 993
	}
	addr := net.JoinHostPort(cfg.IMAPHost, strconv.Itoa(port))

	c, err := imapclient.DialTLS(addr, &imapclient.Options{
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12, ServerName: cfg.IMAPHost},
	})
	if err != nil {
		return nil, fmt.Errorf("imap dial %s: %w", addr, err)
	}
	// unblock pending commands when the source deadline fires
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })

	if err := c.Login(cfg.Username, password).Wait(); err != nil {
		stop()
		_ = c.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, util.BadConfig(fmt.Errorf("imap login: %w", err))
	}

	mailbox := cfg.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := c.Select(mailbox, nil).Wait(); err != nil {
		stop()
		_ = c.Close()
		return nil, util.BadConfig(fmt.Errorf("imap select %q: %w", mailbox, err))
	}
	return &imapMailbox{c: c, stop: stop}, nil
}

func (m *imapMailbox) Search(ctx context.Context, since time.Time, query string, max int) ([]Message, error) {
	criteria := SearchCriteria(query)
	criteria.NotFlag = []imap.Flag{imap.FlagSeen}
	criteria.Since = since

	data, err := m.c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search: %w", err)
	}
	uids := data.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	// highest UID is the newest message
	for i, j := 0, len(uids)-1; i < j; i, j = i+1, j-1 {
		uids[i], uids[j] = uids[j], uids[i]
	}
	if max > 0 && len(uids) > max {
		uids = uids[:max]
	}

	bodyAll := &imap.FetchItemBodySection{Specifier: imap.PartSpecifierNone, Peek: true}
	cmd := m.c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		Envelope:    true,
		BodySection: []*imap.FetchItemBodySection{bodyAll},
	})
	defer func() { _ = cmd.Close() }()

	out := make([]Message, 0, len(uids))
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		msg := cmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			return out, fmt.Errorf("imap fetch: %w", err)
		}
		em := Message{UID: uint32(buf.UID), Raw: append([]byte(nil), buf.FindBodySection(bodyAll)...)}
		if env := buf.Envelope; env != nil {
			em.Subject = env.Subject
			em.Date = env.Date
			if len(env.From) > 0 {
				em.From = env.From[0].Addr()
			}
		}
		out = append(out, em)
	}
	if err := cmd.Close(); err != nil {
		return out, fmt.Errorf("imap fetch: %w", err)
	}
	return out, nil
}

func (m *imapMailbox) MarkSeen(_ context.Context, uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}
	set := make([]imap.UID, len(uids))
	for i, u := range uids {
		set[i] = imap.UID(u)
	}
	cmd := m.c.Store(imap.UIDSetNum(set...), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("imap store seen: %w", err)
	}
	return nil
}

func (m *imapMailbox) Close() error {
	m.stop()
	_ = m.c.Logout().Wait()
	return m.c.Close()
}

// SearchCriteria turns a query such as `FROM "a@b.com" SUBJECT "job alert"`
// into header criteria. Bare words become TEXT criteria.
func SearchCriteria(query string) *imap.SearchCriteria {
	c := &imap.SearchCriteria{}
	toks := tokenize(query)
	for i := 0; i < len(toks); i++ {
		key := strings.ToUpper(toks[i])
		switch key {
		case "FROM", "TO", "CC", "SUBJECT":
			if i+1 < len(toks) {
				c.Header = append(c.Header, imap.SearchCriteriaHeaderField{
					Key:   strings.ToUpper(key[:1]) + strings.ToLower(key[1:]),
					Value: toks[i+1],
				})
				i++
			}
		case "UNSEEN", "ALL":
		default:
			c.Text = append(c.Text, toks[i])
		}
	}
	return c
}

func tokenize(s string) []string {
	var (
		out   []string
		cur   strings.Builder
		quote bool
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			if quote {
				flush()
			}
			quote = !quote
		case (r == ' ' || r == '\t') && !quote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}
