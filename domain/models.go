package domain

import (
	"encoding/json"
	"math"
	"time"
)

// DefaultDatatype is stored when the feed does not say what kind of item it sent.
const DefaultDatatype = "news"

// Article is the canonical stored record, unique by ArticleID.
type Article struct {
	ArticleID      string          `json:"article_id"`
	Title          string          `json:"title"`
	Link           string          `json:"link"`
	Description    string          `json:"description"`
	Content        string          `json:"content"`
	VideoURL       string          `json:"video_url"`
	Keywords       []string        `json:"keywords"`
	Creator        []string        `json:"creator"`
	Country        []string        `json:"country"`
	Category       []string        `json:"category"`
	PubDate        *time.Time      `json:"pubDate"`
	ImageURL       string          `json:"image_url"`
	SourceID       string          `json:"source_id"`
	SourcePriority *int64          `json:"source_priority"`
	SourceURL      string          `json:"source_url"`
	SourceIcon     string          `json:"source_icon"`
	Language       string          `json:"language"`
	AITag          json.RawMessage `json:"ai_tag"`
	Sentiment      string          `json:"sentiment"`
	AIRegion       json.RawMessage `json:"ai_region"`
	AIOrg          json.RawMessage `json:"ai_org"`
	SentimentStats json.RawMessage `json:"sentiment_stats"`
	Duplicate      bool            `json:"duplicate"`
	Datatype       string          `json:"datatype"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// FetchedArticle is one item as delivered by the feed, before normalization.
// List fields are nil when the feed omitted them and PubDate is the raw string.
type FetchedArticle struct {
	ArticleID      string
	Title          string
	Link           string
	Description    string
	Content        string
	VideoURL       string
	Keywords       []string
	Creator        []string
	Country        []string
	Category       []string
	PubDate        string
	ImageURL       string
	SourceID       string
	SourcePriority *int64
	SourceURL      string
	SourceIcon     string
	Language       string
	AITag          json.RawMessage
	Sentiment      string
	AIRegion       json.RawMessage
	AIOrg          json.RawMessage
	SentimentStats json.RawMessage
	Duplicate      bool
	Datatype       string
}

// ArticleFilter is a conjunction of optional predicates. Zero values mean
// "no constraint".
type ArticleFilter struct {
	From       *time.Time
	To         *time.Time
	Author     string
	Language   string
	Countries  []string
	Categories []string
	Datatype   string
	Search     string
}

// ArticleQuery is a filter plus 1-based pagination.
type ArticleQuery struct {
	Filter ArticleFilter
	Page   int
	Limit  int
}

// Offset is the number of records to skip for the query's page.
// It saturates at math.MaxInt instead of overflowing.
func (q ArticleQuery) Offset() int {
	if q.Page < 1 || q.Limit < 1 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

// ArticleList is one page of results.
type ArticleList struct {
	Total      int64     `json:"total"`
	Page       int       `json:"page"`
	TotalPages int64     `json:"totalPages"`
	Articles   []Article `json:"articles"`
}

// FilterOptions holds the distinct values available for each filter.
type FilterOptions struct {
	Languages  []string `json:"languages"`
	Countries  []string `json:"countries"`
	Categories []string `json:"categories"`
	Datatypes  []string `json:"datatypes"`
}

// StoreStatus summarizes the article store.
type StoreStatus struct {
	TotalArticles int64      `json:"totalArticles"`
	LatestArticle *time.Time `json:"latestArticle"`
	Database      string     `json:"database"`
}

const (
	DatabaseConnected    = "connected"
	DatabaseDisconnected = "disconnected"
)

// IngestSummary describes one ingestion run.
type IngestSummary struct {
	RunID    string        `json:"runId"`
	Fetched  int           `json:"fetched"`
	Inserted int           `json:"inserted"`
	Updated  int           `json:"updated"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}
