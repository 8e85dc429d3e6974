package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"newshub/domain"
)

type Repository struct{ db *sql.DB }

func New(db *sql.DB) *Repository { return &Repository{db: db} }

func (r *Repository) Ensure(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS articles (
    article_id TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    title TEXT NOT NULL DEFAULT '',
    link TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    video_url TEXT NOT NULL DEFAULT '',
    keywords TEXT[] NOT NULL DEFAULT '{}',
    creator TEXT[] NOT NULL DEFAULT '{}',
    country TEXT[] NOT NULL DEFAULT '{}',
    category TEXT[] NOT NULL DEFAULT '{}',
    pub_date TIMESTAMPTZ,
    image_url TEXT NOT NULL DEFAULT '',
    source_id TEXT NOT NULL DEFAULT '',
    source_priority BIGINT,
    source_url TEXT NOT NULL DEFAULT '',
    source_icon TEXT NOT NULL DEFAULT '',
    language TEXT NOT NULL DEFAULT '',
    ai_tag JSONB,
    sentiment TEXT NOT NULL DEFAULT '',
    ai_region JSONB,
    ai_org JSONB,
    sentiment_stats JSONB,
    duplicate BOOLEAN NOT NULL DEFAULT false,
    datatype TEXT NOT NULL DEFAULT 'news'
);
CREATE INDEX IF NOT EXISTS articles_pub_date_idx ON articles (pub_date DESC NULLS LAST);
CREATE INDEX IF NOT EXISTS articles_category_idx ON articles USING GIN (category);
CREATE INDEX IF NOT EXISTS articles_country_idx ON articles USING GIN (country);
`)
	return err
}

func (r *Repository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *Repository) Close() error { return r.db.Close() }

// UpsertArticle replaces every field on conflict. xmax is zero only for a
// freshly inserted row, which tells inserts and updates apart in one round trip.
func (r *Repository) UpsertArticle(ctx context.Context, a domain.Article) (bool, error) {
	datatype := a.Datatype
	if datatype == "" {
		datatype = domain.DefaultDatatype
	}
	var inserted bool
	err := r.db.QueryRowContext(ctx, `
INSERT INTO articles (article_id, title, link, description, content, video_url,
    keywords, creator, country, category, pub_date, image_url, source_id,
    source_priority, source_url, source_icon, language, ai_tag, sentiment,
    ai_region, ai_org, sentiment_stats, duplicate, datatype)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
ON CONFLICT (article_id) DO UPDATE SET
    title = EXCLUDED.title,
    link = EXCLUDED.link,
    description = EXCLUDED.description,
    content = EXCLUDED.content,
    video_url = EXCLUDED.video_url,
    keywords = EXCLUDED.keywords,
    creator = EXCLUDED.creator,
    country = EXCLUDED.country,
    category = EXCLUDED.category,
    pub_date = EXCLUDED.pub_date,
    image_url = EXCLUDED.image_url,
    source_id = EXCLUDED.source_id,
    source_priority = EXCLUDED.source_priority,
    source_url = EXCLUDED.source_url,
    source_icon = EXCLUDED.source_icon,
    language = EXCLUDED.language,
    ai_tag = EXCLUDED.ai_tag,
    sentiment = EXCLUDED.sentiment,
    ai_region = EXCLUDED.ai_region,
    ai_org = EXCLUDED.ai_org,
    sentiment_stats = EXCLUDED.sentiment_stats,
    duplicate = EXCLUDED.duplicate,
    datatype = EXCLUDED.datatype,
    updated_at = now()
RETURNING (xmax = 0)`,
		a.ArticleID, a.Title, a.Link, a.Description, a.Content, a.VideoURL,
		pq.Array(orEmpty(a.Keywords)), pq.Array(orEmpty(a.Creator)),
		pq.Array(orEmpty(a.Country)), pq.Array(orEmpty(a.Category)),
		a.PubDate, a.ImageURL, a.SourceID, a.SourcePriority, a.SourceURL,
		a.SourceIcon, a.Language, jsonArg(a.AITag), a.Sentiment,
		jsonArg(a.AIRegion), jsonArg(a.AIOrg), jsonArg(a.SentimentStats),
		a.Duplicate, datatype,
	).Scan(&inserted)
	return inserted, err
}

func (r *Repository) ListArticles(ctx context.Context, f domain.ArticleFilter, offset, limit int) ([]domain.Article, error) {
	q, args := listQuery(f, offset, limit)
	return scanArticles(r.db.QueryContext(ctx, q, args...))
}

func (r *Repository) CountArticles(ctx context.Context, f domain.ArticleFilter) (int64, error) {
	where, args := buildWhere(f)
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM articles`+where, args...).Scan(&n)
	return n, err
}

func (r *Repository) FilterOptions(ctx context.Context) (domain.FilterOptions, error) {
	var (
		opts domain.FilterOptions
		err  error
	)
	if opts.Languages, err = r.distinct(ctx, distinctScalarQuery("language")); err != nil {
		return opts, err
	}
	if opts.Countries, err = r.distinct(ctx, distinctListQuery("country")); err != nil {
		return opts, err
	}
	if opts.Categories, err = r.distinct(ctx, distinctListQuery("category")); err != nil {
		return opts, err
	}
	if opts.Datatypes, err = r.distinct(ctx, distinctScalarQuery("datatype")); err != nil {
		return opts, err
	}
	return opts, nil
}

func (r *Repository) LatestPubDate(ctx context.Context) (*time.Time, error) {
	var t sql.NullTime
	if err := r.db.QueryRowContext(ctx, `SELECT max(pub_date) FROM articles`).Scan(&t); err != nil {
		return nil, err
	}
	if !t.Valid {
		return nil, nil
	}
	v := t.Time.UTC()
	return &v, nil
}

func (r *Repository) distinct(ctx context.Context, q string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const selectColumns = `article_id, title, link, description, content, video_url,
keywords, creator, country, category, pub_date, image_url, source_id,
source_priority, source_url, source_icon, language, ai_tag, sentiment,
ai_region, ai_org, sentiment_stats, duplicate, datatype, created_at, updated_at`

func scanArticles(rows *sql.Rows, err error) ([]domain.Article, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Article
	for rows.Next() {
		var a domain.Article
		var pub sql.NullTime
		var prio sql.NullInt64
		var aiTag, aiRegion, aiOrg, stats []byte
		a.Keywords, a.Creator, a.Country, a.Category = []string{}, []string{}, []string{}, []string{}
		if err := rows.Scan(&a.ArticleID, &a.Title, &a.Link, &a.Description, &a.Content, &a.VideoURL,
			pq.Array(&a.Keywords), pq.Array(&a.Creator), pq.Array(&a.Country), pq.Array(&a.Category),
			&pub, &a.ImageURL, &a.SourceID, &prio, &a.SourceURL, &a.SourceIcon, &a.Language,
			&aiTag, &a.Sentiment, &aiRegion, &aiOrg, &stats, &a.Duplicate, &a.Datatype,
			&a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		if pub.Valid {
			t := pub.Time.UTC()
			a.PubDate = &t
		}
		if prio.Valid {
			v := prio.Int64
			a.SourcePriority = &v
		}
		a.AITag = rawJSON(aiTag)
		a.AIRegion = rawJSON(aiRegion)
		a.AIOrg = rawJSON(aiOrg)
		a.SentimentStats = rawJSON(stats)
		out = append(out, a)
	}
	return out, rows.Err()
}

func listQuery(f domain.ArticleFilter, offset, limit int) (string, []any) {
	where, args := buildWhere(f)
	n := len(args)
	q := `SELECT ` + selectColumns + ` FROM articles` + where +
		fmt.Sprintf(` ORDER BY pub_date DESC NULLS LAST, article_id ASC LIMIT $%d OFFSET $%d`, n+1, n+2)
	return q, append(args, limit, offset)
}

// buildWhere renders f as a WHERE clause with numbered placeholders.
func buildWhere(f domain.ArticleFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.From != nil {
		conds = append(conds, "pub_date >= "+next(f.From.UTC()))
	}
	if f.To != nil {
		conds = append(conds, "pub_date <= "+next(f.To.UTC()))
	}
	if f.Author != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM unnest(creator) AS c WHERE c ILIKE "+next(containsPattern(f.Author))+")")
	}
	if f.Language != "" {
		conds = append(conds, "language = "+next(f.Language))
	}
	if len(f.Countries) > 0 {
		conds = append(conds, "country && "+next(pq.Array(f.Countries))+"::text[]")
	}
	if len(f.Categories) > 0 {
		conds = append(conds, "category @> "+next(pq.Array(f.Categories))+"::text[]")
	}
	if f.Datatype != "" {
		conds = append(conds, "datatype = "+next(f.Datatype))
	}
	if f.Search != "" {
		p := next(containsPattern(f.Search))
		conds = append(conds, "(title ILIKE "+p+" OR description ILIKE "+p+")")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// The collated value is what gets selected: DISTINCT only accepts ORDER BY
// expressions that appear in the select list.
func distinctScalarQuery(column string) string {
	return fmt.Sprintf(`SELECT DISTINCT %[1]s COLLATE "C" AS v FROM articles WHERE %[1]s <> '' ORDER BY 1`, column)
}

func distinctListQuery(column string) string {
	return fmt.Sprintf(`SELECT DISTINCT u COLLATE "C" AS v FROM articles, unnest(%s) AS u WHERE u IS NOT NULL AND u <> '' ORDER BY 1`, column)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func rawJSON(b []byte) json.RawMessage {
	if b == nil {
		return nil
	}
	return json.RawMessage(b)
}
