package httpapi

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"newshub/app"
	"newshub/domain"
)

// parseArticleQuery maps /articles query parameters onto a domain query.
// Values that do not parse are dropped rather than rejected.
func parseArticleQuery(v url.Values) domain.ArticleQuery {
	f := domain.ArticleFilter{
		Author:     strings.TrimSpace(v.Get("author")),
		Language:   strings.ToLower(strings.TrimSpace(v.Get("language"))),
		Countries:  splitCSV(v.Get("country")),
		Categories: splitCSV(v.Get("category")),
		Datatype:   strings.ToLower(strings.TrimSpace(v.Get("datatype"))),
		Search:     strings.TrimSpace(v.Get("search")),
	}
	if day, ok := parseDay(v.Get("startDate")); ok {
		f.From = &day
	}
	if day, ok := parseDay(v.Get("endDate")); ok {
		end := day.Add(24*time.Hour - time.Nanosecond)
		f.To = &end
	}
	return domain.ArticleQuery{
		Filter: f,
		Page:   positiveInt(v.Get("page"), app.DefaultPage),
		Limit:  positiveInt(v.Get("limit"), app.DefaultLimit),
	}
}

// parseDay returns midnight UTC of the calendar day s names.
func parseDay(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
}

func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
