// Package storetest holds behaviour every domain.ArticleRepository must share.
// Each store package runs it from its own tests.
package storetest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newshub/domain"
)

// Opener returns an empty, ensured store. It registers its own cleanup.
type Opener func(t *testing.T) domain.ArticleRepository

func Run(t *testing.T, open Opener) {
	t.Run("UpsertTwice", func(t *testing.T) { testUpsertTwice(t, open(t)) })
	t.Run("Filters", func(t *testing.T) { testFilters(t, open(t)) })
	t.Run("Ordering", func(t *testing.T) { testOrdering(t, open(t)) })
	t.Run("FilterOptions", func(t *testing.T) { testFilterOptions(t, open(t)) })
	t.Run("EmptyStatus", func(t *testing.T) { testEmptyStatus(t, open(t)) })
}

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func article(id string, mutate func(*domain.Article)) domain.Article {
	a := domain.Article{
		ArticleID: id,
		Title:     "title " + id,
		Keywords:  []string{},
		Creator:   []string{},
		Country:   []string{},
		Category:  []string{},
		Datatype:  domain.DefaultDatatype,
	}
	if mutate != nil {
		mutate(&a)
	}
	return a
}

func ids(arts []domain.Article) []string {
	out := []string{}
	for _, a := range arts {
		out = append(out, a.ArticleID)
	}
	return out
}

func seed(t *testing.T, repo domain.ArticleRepository, arts ...domain.Article) {
	t.Helper()
	for _, a := range arts {
		_, err := repo.UpsertArticle(context.Background(), a)
		require.NoError(t, err)
	}
}

func list(t *testing.T, repo domain.ArticleRepository, f domain.ArticleFilter) []string {
	t.Helper()
	arts, err := repo.ListArticles(context.Background(), f, 0, 100)
	require.NoError(t, err)
	n, err := repo.CountArticles(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, int64(len(arts)), n, "count and list disagree")
	return ids(arts)
}

func testUpsertTwice(t *testing.T, repo domain.ArticleRepository) {
	ctx := context.Background()
	prio := int64(7)
	a := article("dup", func(a *domain.Article) {
		a.Title = "first"
		a.Creator = []string{"Jane"}
		a.PubDate = at("2024-01-01T10:00:00Z")
		a.SourcePriority = &prio
		a.SentimentStats = json.RawMessage(`{"positive":1}`)
	})

	inserted, err := repo.UpsertArticle(ctx, a)
	require.NoError(t, err)
	assert.True(t, inserted)

	a.Title = "second"
	a.SentimentStats = nil
	inserted, err = repo.UpsertArticle(ctx, a)
	require.NoError(t, err)
	assert.False(t, inserted, "second upsert of the same id is an update")

	n, err := repo.CountArticles(ctx, domain.ArticleFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	arts, err := repo.ListArticles(ctx, domain.ArticleFilter{}, 0, 10)
	require.NoError(t, err)
	require.Len(t, arts, 1)
	got := arts[0]
	assert.Equal(t, "second", got.Title)
	assert.Equal(t, []string{"Jane"}, got.Creator)
	assert.Equal(t, []string{}, got.Category)
	require.NotNil(t, got.SourcePriority)
	assert.Equal(t, prio, *got.SourcePriority)
	assert.Nil(t, got.SentimentStats)
	require.NotNil(t, got.PubDate)
	assert.True(t, at("2024-01-01T10:00:00Z").Equal(*got.PubDate))
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func testFilters(t *testing.T, repo domain.ArticleRepository) {
	seed(t, repo,
		article("a", func(a *domain.Article) {
			a.Title = "Central bank raises rates"
			a.Creator = []string{"Jane Doe"}
			a.Country = []string{"us"}
			a.Category = []string{"business", "top"}
			a.Language = "english"
			a.PubDate = at("2024-01-02T23:30:00Z")
		}),
		article("b", func(a *domain.Article) {
			a.Description = "Election results are in"
			a.Creator = []string{"John Smith", "Łukasz Żółw"}
			a.Country = []string{"uk", "us"}
			a.Category = []string{"politics"}
			a.Language = "english"
			a.PubDate = at("2024-01-03T00:00:00Z")
		}),
		article("c", func(a *domain.Article) {
			a.Title = "Ça va à Zürich"
			a.Country = []string{"fr"}
			a.Category = []string{"top"}
			a.Language = "french"
			a.Datatype = "blog"
			a.PubDate = at("2023-12-31T12:00:00Z")
		}),
	)

	tests := []struct {
		name string
		f    domain.ArticleFilter
		want []string
	}{
		{"none", domain.ArticleFilter{}, []string{"b", "a", "c"}},
		{"range", domain.ArticleFilter{From: at("2024-01-02T00:00:00Z"), To: at("2024-01-02T23:59:59Z")}, []string{"a"}},
		{"author ascii", domain.ArticleFilter{Author: "JANE"}, []string{"a"}},
		{"author non-ascii", domain.ArticleFilter{Author: "ŻÓŁW"}, []string{"b"}},
		{"language", domain.ArticleFilter{Language: "french"}, []string{"c"}},
		{"country intersects", domain.ArticleFilter{Countries: []string{"uk", "fr"}}, []string{"b", "c"}},
		{"category superset", domain.ArticleFilter{Categories: []string{"top", "business"}}, []string{"a"}},
		{"category single", domain.ArticleFilter{Categories: []string{"top"}}, []string{"a", "c"}},
		{"datatype", domain.ArticleFilter{Datatype: "blog"}, []string{"c"}},
		{"search title", domain.ArticleFilter{Search: "bank"}, []string{"a"}},
		{"search description", domain.ArticleFilter{Search: "ELECTION"}, []string{"b"}},
		{"search non-ascii", domain.ArticleFilter{Search: "zÜrich"}, []string{"c"}},
		{"search wildcard literal", domain.ArticleFilter{Search: "%"}, []string{}},
		{"no match", domain.ArticleFilter{Author: "nobody"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, list(t, repo, tt.f))
		})
	}
}

func testOrdering(t *testing.T, repo domain.ArticleRepository) {
	seed(t, repo,
		article("undated", nil),
		article("old", func(a *domain.Article) { a.PubDate = at("2024-01-01T00:00:00Z") }),
		article("new-b", func(a *domain.Article) { a.PubDate = at("2024-02-01T00:00:00Z") }),
		article("new-a", func(a *domain.Article) { a.PubDate = at("2024-02-01T00:00:00Z") }),
	)
	assert.Equal(t, []string{"new-a", "new-b", "old", "undated"}, list(t, repo, domain.ArticleFilter{}))

	page, err := repo.ListArticles(context.Background(), domain.ArticleFilter{}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "undated"}, ids(page))

	latest, err := repo.LatestPubDate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, at("2024-02-01T00:00:00Z").Equal(*latest))
}

func testFilterOptions(t *testing.T, repo domain.ArticleRepository) {
	seed(t, repo,
		article("a", func(a *domain.Article) {
			a.Language = "english"
			a.Country = []string{"us", "uk"}
			a.Category = []string{"top"}
		}),
		article("b", func(a *domain.Article) {
			a.Language = "english"
			a.Country = []string{"us", ""}
			a.Category = []string{"business", "top"}
			a.Datatype = "blog"
		}),
		article("c", func(a *domain.Article) {
			a.Language = ""
			a.Country = []string{"Fr"}
		}),
	)

	opts, err := repo.FilterOptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"english"}, opts.Languages)
	assert.Equal(t, []string{"Fr", "uk", "us"}, opts.Countries)
	assert.Equal(t, []string{"business", "top"}, opts.Categories)
	assert.Equal(t, []string{"blog", "news"}, opts.Datatypes)
}

func testEmptyStatus(t *testing.T, repo domain.ArticleRepository) {
	ctx := context.Background()
	require.NoError(t, repo.Ping(ctx))

	n, err := repo.CountArticles(ctx, domain.ArticleFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)

	latest, err := repo.LatestPubDate(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	opts, err := repo.FilterOptions(ctx)
	require.NoError(t, err)
	assert.Empty(t, opts.Languages)
	assert.Empty(t, opts.Countries)
}
