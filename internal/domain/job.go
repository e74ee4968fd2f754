package domain

import "time"

// RawPosting is what a source adapter emits before dedup and scoring.
type RawPosting struct {
	Title        string
	Company      string
	Location     string
	Description  string
	Requirements string
	URL          string
	Source       string
	Remote       bool
	PostedAt     *time.Time
	Meta         Metadata
}

type Job struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Company         string    `json:"company"`
	Location        string    `json:"location"`
	Description     string    `json:"description"`
	Requirements    string    `json:"requirements"`
	URL             string    `json:"url"`
	Source          string    `json:"source"`
	Remote          bool      `json:"remote"`
	SourceMeta      Metadata  `json:"source_meta,omitempty"`
	PostDate        string    `json:"post_date,omitempty"`
	JobHash         string    `json:"job_hash"`
	RelevanceScore  float64   `json:"relevance_score"`
	KeywordsMatched string    `json:"keywords_matched"`
	Applied         bool      `json:"applied"`
	Notes           string    `json:"notes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	LastSeenAt      time.Time `json:"last_seen_at"`
}
