package newsdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"newshub/domain"
)

// ErrUpstream is returned when the feed answers with an error.
var ErrUpstream = errors.New("newsdata: upstream error")

// maxBody bounds how much of a response is read.
const maxBody = 16 << 20

type HTTPFetcher struct {
	client   *http.Client
	endpoint string
	apiKey   string
	language string
	log      *slog.Logger
}

func NewHTTPFetcher(endpoint, apiKey, language string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		apiKey:   apiKey,
		language: language,
		log:      slog.Default(),
	}
}

// WithLogger sets where skipped feed items are reported.
func (f *HTTPFetcher) WithLogger(log *slog.Logger) *HTTPFetcher {
	f.log = log
	return f
}

// Fetch issues a single GET against the latest-news endpoint.
func (f *HTTPFetcher) Fetch(ctx context.Context) ([]domain.FetchedArticle, error) {
	u, err := url.Parse(f.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}
	q := u.Query()
	q.Set("apikey", f.apiKey)
	q.Set("language", f.language)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}

	var lr latestResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: %s", ErrUpstream, resp.Status)
		}
		return nil, fmt.Errorf("decode feed body: %w", err)
	}
	if resp.StatusCode >= 300 || lr.Status == "error" {
		var e upstreamError
		_ = json.Unmarshal(lr.Results, &e)
		if e.Message == "" {
			e.Message = resp.Status
		}
		return nil, fmt.Errorf("%w: %s", ErrUpstream, e.Message)
	}

	var raw []json.RawMessage
	if len(lr.Results) > 0 && string(lr.Results) != "null" {
		if err := json.Unmarshal(lr.Results, &raw); err != nil {
			return nil, fmt.Errorf("decode feed results: %w", err)
		}
	}

	out := make([]domain.FetchedArticle, 0, len(raw))
	malformed := 0
	for i, r := range raw {
		var it item
		if err := json.Unmarshal(r, &it); err != nil {
			malformed++
			f.log.Debug("skipping malformed feed item", "index", i, "error", err)
			continue
		}
		out = append(out, it.toDomain())
	}
	if malformed > 0 {
		f.log.Warn("feed items skipped", "malformed", malformed, "decoded", len(out))
	}
	return out, nil
}

type latestResponse struct {
	Status       string          `json:"status"`
	TotalResults int             `json:"totalResults"`
	Results      json.RawMessage `json:"results"`
	NextPage     string          `json:"nextPage"`
}

type upstreamError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type item struct {
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
	PubDate        string          `json:"pubDate"`
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
}

func (it item) toDomain() domain.FetchedArticle {
	return domain.FetchedArticle{
		ArticleID:      it.ArticleID,
		Title:          it.Title,
		Link:           it.Link,
		Description:    it.Description,
		Content:        it.Content,
		VideoURL:       it.VideoURL,
		Keywords:       it.Keywords,
		Creator:        it.Creator,
		Country:        it.Country,
		Category:       it.Category,
		PubDate:        it.PubDate,
		ImageURL:       it.ImageURL,
		SourceID:       it.SourceID,
		SourcePriority: it.SourcePriority,
		SourceURL:      it.SourceURL,
		SourceIcon:     it.SourceIcon,
		Language:       it.Language,
		AITag:          it.AITag,
		Sentiment:      it.Sentiment,
		AIRegion:       it.AIRegion,
		AIOrg:          it.AIOrg,
		SentimentStats: it.SentimentStats,
		Duplicate:      it.Duplicate,
		Datatype:       it.Datatype,
	}
}
