package app

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"newshub/domain"
)

// feedTimeLayout is the layout the feed uses for pubDate, always UTC.
const feedTimeLayout = "2006-01-02 15:04:05"

// Normalize converts a feed item into the stored record shape. ok is false
// when the item has no article id and cannot be stored.
func Normalize(in domain.FetchedArticle) (a domain.Article, ok bool) {
	id := strings.TrimSpace(in.ArticleID)
	if id == "" {
		return domain.Article{}, false
	}
	datatype := in.Datatype
	if datatype == "" {
		datatype = domain.DefaultDatatype
	}
	return domain.Article{
		ArticleID:      id,
		Title:          in.Title,
		Link:           in.Link,
		Description:    in.Description,
		Content:        in.Content,
		VideoURL:       in.VideoURL,
		Keywords:       orEmpty(in.Keywords),
		Creator:        orEmpty(in.Creator),
		Country:        orEmpty(in.Country),
		Category:       orEmpty(in.Category),
		PubDate:        ParsePubDate(in.PubDate),
		ImageURL:       in.ImageURL,
		SourceID:       in.SourceID,
		SourcePriority: in.SourcePriority,
		SourceURL:      in.SourceURL,
		SourceIcon:     in.SourceIcon,
		Language:       in.Language,
		AITag:          opaque(in.AITag),
		Sentiment:      in.Sentiment,
		AIRegion:       opaque(in.AIRegion),
		AIOrg:          opaque(in.AIOrg),
		SentimentStats: opaque(in.SentimentStats),
		Duplicate:      in.Duplicate,
		Datatype:       datatype,
	}, true
}

// ParsePubDate returns nil for empty or unparseable input.
func ParsePubDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.ParseInLocation(feedTimeLayout, s, time.UTC); err == nil {
		return &t
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// opaque drops JSON null so absent and null values are stored the same way.
func opaque(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return raw
}
