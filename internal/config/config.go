// Package config holds the user-editable Settings file and the process
// runtime options read from the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	LinkedInModeEmail          = "email"
	LinkedInModeWhitelistCrawl = "whitelist_crawl"
)

// Board is one company job board on an ATS (Greenhouse, Lever,
// SmartRecruiters or Workday).
type Board struct {
	Name     string `json:"name" yaml:"name" toml:"name"`
	BoardURL string `json:"board_url" yaml:"board_url" toml:"board_url" validate:"board_url"`
}

// boardFields avoids recursing into the custom unmarshalers.
type boardFields Board

// UnmarshalYAML accepts either a {name, board_url} mapping or a bare slug.
func (b *Board) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		b.Name, b.BoardURL = n.Value, ""
		return nil
	}
	var f boardFields
	if err := n.Decode(&f); err != nil {
		return err
	}
	*b = Board(f)
	return nil
}

func (b *Board) UnmarshalJSON(data []byte) error {
	var slug string
	if err := json.Unmarshal(data, &slug); err == nil {
		b.Name, b.BoardURL = slug, ""
		return nil
	}
	var f boardFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*b = Board(f)
	return nil
}

// Slug is the last path segment of the board URL.
func (b Board) Slug() string {
	u := strings.TrimRight(strings.TrimSpace(b.BoardURL), "/")
	if i := strings.Index(u, "?"); i >= 0 {
		u = u[:i]
	}
	if i := strings.LastIndex(u, "/"); i >= 0 {
		return u[i+1:]
	}
	return u
}

type LinkedInEmail struct {
	IMAPHost  string `json:"imap_host" yaml:"imap_host" toml:"imap_host"`
	IMAPPort  int    `json:"imap_port" yaml:"imap_port" toml:"imap_port" validate:"min=0,max=65535"`
	Username  string `json:"username" yaml:"username" toml:"username"`
	Mailbox   string `json:"mailbox" yaml:"mailbox" toml:"mailbox"`
	Query     string `json:"query" yaml:"query" toml:"query"`
	MaxEmails int    `json:"max_emails" yaml:"max_emails" toml:"max_emails" validate:"min=0,max=500"`
	MarkSeen  bool   `json:"mark_seen" yaml:"mark_seen" toml:"mark_seen"`
}

type LinkedInCrawl struct {
	Allowed     bool     `json:"allowed" yaml:"allowed" toml:"allowed"`
	SeedURLs    []string `json:"seed_urls" yaml:"seed_urls" toml:"seed_urls" validate:"dive,url"`
	MaxPages    int      `json:"max_pages" yaml:"max_pages" toml:"max_pages" validate:"min=0,max=20"`
	MinDelaySec float64  `json:"min_delay_sec" yaml:"min_delay_sec" toml:"min_delay_sec" validate:"min=0"`
}

// LinkedInVariant is the active LinkedIn sub-config, selected by LinkedInMode.
// It is either LinkedInEmail or LinkedInCrawl.
type LinkedInVariant interface {
	linkedInMode() string
}

func (LinkedInEmail) linkedInMode() string { return LinkedInModeEmail }
func (LinkedInCrawl) linkedInMode() string { return LinkedInModeWhitelistCrawl }

type Notifications struct {
	Enabled        bool    `json:"enabled" yaml:"enabled" toml:"enabled"`
	TelegramChatID int64   `json:"telegram_chat_id" yaml:"telegram_chat_id" toml:"telegram_chat_id"`
	MinScore       float64 `json:"min_score" yaml:"min_score" toml:"min_score" validate:"min=0"`
	RunAlerts      bool    `json:"run_alerts" yaml:"run_alerts" toml:"run_alerts"`
}

type Settings struct {
	Keywords              []string        `json:"keywords" yaml:"keywords" toml:"keywords"`
	Locations             []string        `json:"locations" yaml:"locations" toml:"locations"`
	Sources               map[string]bool `json:"sources" yaml:"sources" toml:"sources"`
	GreenhouseBoards      []Board         `json:"greenhouse_boards" yaml:"greenhouse_boards" toml:"greenhouse_boards" validate:"dive"`
	LeverBoards           []Board         `json:"lever_boards" yaml:"lever_boards" toml:"lever_boards" validate:"dive"`
	SmartRecruitersBoards []Board         `json:"smartrecruiters_boards,omitempty" yaml:"smartrecruiters_boards,omitempty" toml:"smartrecruiters_boards,omitempty" validate:"dive"`
	// WorkdayBoards take the full careers site URL, e.g.
	// https://acme.wd5.myworkdayjobs.com/en-US/External.
	WorkdayBoards []Board `json:"workday_boards,omitempty" yaml:"workday_boards,omitempty" toml:"workday_boards,omitempty" validate:"dive"`
	IndiaMode     bool    `json:"india_mode" yaml:"india_mode" toml:"india_mode"`

	LinkedInMode  string         `json:"linkedin_mode" yaml:"linkedin_mode" toml:"linkedin_mode" validate:"linkedin_mode"`
	LinkedInEmail *LinkedInEmail `json:"linkedin_email,omitempty" yaml:"linkedin_email,omitempty" toml:"linkedin_email,omitempty"`
	LinkedInCrawl *LinkedInCrawl `json:"linkedin_crawl,omitempty" yaml:"linkedin_crawl,omitempty" toml:"linkedin_crawl,omitempty"`

	CrawlHour   int `json:"crawl_hour" yaml:"crawl_hour" toml:"crawl_hour" validate:"min=0,max=23"`
	CrawlMinute int `json:"crawl_minute" yaml:"crawl_minute" toml:"crawl_minute" validate:"min=0,max=59"`

	// RequireKeywordMatch drops postings that match no keyword. Nil means true.
	RequireKeywordMatch *bool `json:"require_keyword_match,omitempty" yaml:"require_keyword_match,omitempty" toml:"require_keyword_match,omitempty"`

	Notifications Notifications `json:"notifications" yaml:"notifications" toml:"notifications"`
}

// SourceEnabled treats a missing key as disabled.
func (s Settings) SourceEnabled(id string) bool {
	return s.Sources[id]
}

func (s Settings) KeywordMatchRequired() bool {
	return s.RequireKeywordMatch == nil || *s.RequireKeywordMatch
}

// LinkedIn returns the sub-config for the active LinkedIn mode, default
// constructed when the file omitted it.
func (s Settings) LinkedIn() LinkedInVariant {
	if s.LinkedInMode == LinkedInModeWhitelistCrawl {
		if s.LinkedInCrawl == nil {
			return defaultLinkedInCrawl()
		}
		return *s.LinkedInCrawl
	}
	if s.LinkedInEmail == nil {
		return defaultLinkedInEmail()
	}
	return *s.LinkedInEmail
}

// Clone returns a deep copy so callers can mutate without racing readers of
// the stored value.
func (s Settings) Clone() Settings {
	out := s
	out.Keywords = append([]string(nil), s.Keywords...)
	out.Locations = append([]string(nil), s.Locations...)
	out.GreenhouseBoards = append([]Board(nil), s.GreenhouseBoards...)
	out.LeverBoards = append([]Board(nil), s.LeverBoards...)
	out.SmartRecruitersBoards = append([]Board(nil), s.SmartRecruitersBoards...)
	out.WorkdayBoards = append([]Board(nil), s.WorkdayBoards...)
	if s.Sources != nil {
		out.Sources = make(map[string]bool, len(s.Sources))
		for k, v := range s.Sources {
			out.Sources[k] = v
		}
	}
	if s.LinkedInEmail != nil {
		e := *s.LinkedInEmail
		out.LinkedInEmail = &e
	}
	if s.LinkedInCrawl != nil {
		c := *s.LinkedInCrawl
		c.SeedURLs = append([]string(nil), c.SeedURLs...)
		out.LinkedInCrawl = &c
	}
	if s.RequireKeywordMatch != nil {
		v := *s.RequireKeywordMatch
		out.RequireKeywordMatch = &v
	}
	return out
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load reads a settings file (yaml, or toml by extension) and applies defaults
// for anything a legacy file left out.
func Load(path string) (Settings, error) {
	var s Settings
	b, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if isTOML(path) {
		err = toml.Unmarshal(b, &s)
	} else {
		err = yaml.Unmarshal(b, &s)
	}
	if err != nil {
		return s, fmt.Errorf("parse settings %s: %w", path, err)
	}
	ApplyDefaults(&s)
	return s, nil
}

func marshal(path string, s Settings) ([]byte, error) {
	if isTOML(path) {
		return toml.Marshal(s)
	}
	return yaml.Marshal(&s)
}
