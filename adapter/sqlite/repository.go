// Package sqlite stores articles in a single SQLite file. List fields are kept
// as JSON arrays and queried through json_each.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"

	"newshub/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS articles (
    article_id      TEXT PRIMARY KEY,
    title           TEXT NOT NULL DEFAULT '',
    link            TEXT NOT NULL DEFAULT '',
    description     TEXT NOT NULL DEFAULT '',
    content         TEXT NOT NULL DEFAULT '',
    video_url       TEXT NOT NULL DEFAULT '',
    keywords        TEXT NOT NULL DEFAULT '[]',
    creator         TEXT NOT NULL DEFAULT '[]',
    country         TEXT NOT NULL DEFAULT '[]',
    category        TEXT NOT NULL DEFAULT '[]',
    pub_date        INTEGER,
    image_url       TEXT NOT NULL DEFAULT '',
    source_id       TEXT NOT NULL DEFAULT '',
    source_priority INTEGER,
    source_url      TEXT NOT NULL DEFAULT '',
    source_icon     TEXT NOT NULL DEFAULT '',
    language        TEXT NOT NULL DEFAULT '',
    ai_tag          TEXT,
    sentiment       TEXT NOT NULL DEFAULT '',
    ai_region       TEXT,
    ai_org          TEXT,
    sentiment_stats TEXT,
    duplicate       INTEGER NOT NULL DEFAULT 0,
    datatype        TEXT NOT NULL DEFAULT 'news',
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_articles_pub_date ON articles (pub_date DESC);
`

const columns = `article_id, title, link, description, content, video_url,
keywords, creator, country, category, pub_date, image_url, source_id,
source_priority, source_url, source_icon, language, ai_tag, sentiment,
ai_region, ai_org, sentiment_stats, duplicate, datatype, created_at, updated_at`

// foldFunc is the SQL name of a Unicode-aware lower(); the built-in one only
// folds ASCII.
const foldFunc = "newshub_fold"

func init() {
	msqlite.MustRegisterDeterministicScalarFunction(foldFunc, 1, fold)
}

func fold(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database file at path.
func Open(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection serializes writers and keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	return &Repository{db: db, now: time.Now}, nil
}

func (r *Repository) Ensure(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *Repository) Close() error { return r.db.Close() }

func (r *Repository) UpsertArticle(ctx context.Context, a domain.Article) (bool, error) {
	args, err := upsertArgs(a, r.now().UTC().UnixMilli())
	if err != nil {
		return false, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM articles WHERE article_id = ?)`, a.ArticleID).Scan(&exists); err != nil {
		return false, err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO articles (`+columns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT (article_id) DO UPDATE SET
    title = excluded.title,
    link = excluded.link,
    description = excluded.description,
    content = excluded.content,
    video_url = excluded.video_url,
    keywords = excluded.keywords,
    creator = excluded.creator,
    country = excluded.country,
    category = excluded.category,
    pub_date = excluded.pub_date,
    image_url = excluded.image_url,
    source_id = excluded.source_id,
    source_priority = excluded.source_priority,
    source_url = excluded.source_url,
    source_icon = excluded.source_icon,
    language = excluded.language,
    ai_tag = excluded.ai_tag,
    sentiment = excluded.sentiment,
    ai_region = excluded.ai_region,
    ai_org = excluded.ai_org,
    sentiment_stats = excluded.sentiment_stats,
    duplicate = excluded.duplicate,
    datatype = excluded.datatype,
    updated_at = excluded.updated_at`, args...)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return !exists, nil
}

func (r *Repository) ListArticles(ctx context.Context, f domain.ArticleFilter, offset, limit int) ([]domain.Article, error) {
	where, args := buildWhere(f)
	q := `SELECT ` + columns + ` FROM articles` + where +
		` ORDER BY pub_date IS NULL, pub_date DESC, article_id ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) CountArticles(ctx context.Context, f domain.ArticleFilter) (int64, error) {
	where, args := buildWhere(f)
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`+where, args...).Scan(&n)
	return n, err
}

func (r *Repository) FilterOptions(ctx context.Context) (domain.FilterOptions, error) {
	var (
		opts domain.FilterOptions
		err  error
	)
	if opts.Languages, err = r.distinctScalar(ctx, "language"); err != nil {
		return opts, err
	}
	if opts.Countries, err = r.distinctList(ctx, "country"); err != nil {
		return opts, err
	}
	if opts.Categories, err = r.distinctList(ctx, "category"); err != nil {
		return opts, err
	}
	if opts.Datatypes, err = r.distinctScalar(ctx, "datatype"); err != nil {
		return opts, err
	}
	return opts, nil
}

func (r *Repository) LatestPubDate(ctx context.Context) (*time.Time, error) {
	var ms sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(pub_date) FROM articles`).Scan(&ms); err != nil {
		return nil, err
	}
	return fromMillis(ms), nil
}

func (r *Repository) distinctScalar(ctx context.Context, column string) ([]string, error) {
	q := fmt.Sprintf(`SELECT DISTINCT %[1]s FROM articles WHERE %[1]s IS NOT NULL AND %[1]s <> '' ORDER BY 1`, column)
	return queryStrings(ctx, r.db, q)
}

func (r *Repository) distinctList(ctx context.Context, column string) ([]string, error) {
	q := fmt.Sprintf(`SELECT DISTINCT j.value FROM articles, json_each(articles.%s) AS j
WHERE j.type = 'text' AND j.value <> '' ORDER BY 1`, column)
	return queryStrings(ctx, r.db, q)
}

func queryStrings(ctx context.Context, db *sql.DB, q string) ([]string, error) {
	rows, err := db.QueryContext(ctx, q)
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

// buildWhere renders f as a WHERE clause with positional arguments.
func buildWhere(f domain.ArticleFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.From != nil {
		conds = append(conds, "pub_date >= ?")
		args = append(args, f.From.UTC().UnixMilli())
	}
	if f.To != nil {
		conds = append(conds, "pub_date <= ?")
		args = append(args, f.To.UTC().UnixMilli())
	}
	if f.Author != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM json_each(articles.creator) AS c WHERE `+foldFunc+`(c.value) LIKE ? ESCAPE '\')`)
		args = append(args, containsPattern(f.Author))
	}
	if f.Language != "" {
		conds = append(conds, "language = ?")
		args = append(args, f.Language)
	}
	if len(f.Countries) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?,", len(f.Countries)), ",")
		conds = append(conds, `EXISTS (SELECT 1 FROM json_each(articles.country) AS k WHERE k.value IN (`+marks+`))`)
		for _, c := range f.Countries {
			args = append(args, c)
		}
	}
	for _, c := range f.Categories {
		conds = append(conds, `EXISTS (SELECT 1 FROM json_each(articles.category) AS g WHERE g.value = ?)`)
		args = append(args, c)
	}
	if f.Datatype != "" {
		conds = append(conds, "datatype = ?")
		args = append(args, f.Datatype)
	}
	if f.Search != "" {
		p := containsPattern(f.Search)
		conds = append(conds, `(`+foldFunc+`(title) LIKE ? ESCAPE '\' OR `+foldFunc+`(description) LIKE ? ESCAPE '\')`)
		args = append(args, p, p)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

func upsertArgs(a domain.Article, nowMillis int64) ([]any, error) {
	lists := make([]string, 0, 4)
	for _, l := range [][]string{a.Keywords, a.Creator, a.Country, a.Category} {
		if l == nil {
			l = []string{}
		}
		b, err := json.Marshal(l)
		if err != nil {
			return nil, err
		}
		lists = append(lists, string(b))
	}
	var pub, prio any
	if a.PubDate != nil {
		pub = a.PubDate.UTC().UnixMilli()
	}
	if a.SourcePriority != nil {
		prio = *a.SourcePriority
	}
	datatype := a.Datatype
	if datatype == "" {
		datatype = domain.DefaultDatatype
	}
	return []any{
		a.ArticleID, a.Title, a.Link, a.Description, a.Content, a.VideoURL,
		lists[0], lists[1], lists[2], lists[3], pub, a.ImageURL, a.SourceID,
		prio, a.SourceURL, a.SourceIcon, a.Language, rawArg(a.AITag), a.Sentiment,
		rawArg(a.AIRegion), rawArg(a.AIOrg), rawArg(a.SentimentStats), a.Duplicate, datatype,
		nowMillis, nowMillis,
	}, nil
}

func rawArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(s scanner) (domain.Article, error) {
	var a domain.Article
	var keywords, creator, country, cat string
	var pub, prio sql.NullInt64
	var aiTag, aiRegion, aiOrg, stats sql.NullString
	var created, updated int64
	err := s.Scan(&a.ArticleID, &a.Title, &a.Link, &a.Description, &a.Content, &a.VideoURL,
		&keywords, &creator, &country, &cat, &pub, &a.ImageURL, &a.SourceID,
		&prio, &a.SourceURL, &a.SourceIcon, &a.Language, &aiTag, &a.Sentiment,
		&aiRegion, &aiOrg, &stats, &a.Duplicate, &a.Datatype, &created, &updated)
	if err != nil {
		return domain.Article{}, err
	}
	for _, l := range []struct {
		src string
		dst *[]string
	}{{keywords, &a.Keywords}, {creator, &a.Creator}, {country, &a.Country}, {cat, &a.Category}} {
		*l.dst = []string{}
		if err := json.Unmarshal([]byte(l.src), l.dst); err != nil {
			return domain.Article{}, fmt.Errorf("decode list for %s: %w", a.ArticleID, err)
		}
	}
	a.PubDate = fromMillis(pub)
	if prio.Valid {
		v := prio.Int64
		a.SourcePriority = &v
	}
	a.AITag = rawValue(aiTag)
	a.AIRegion = rawValue(aiRegion)
	a.AIOrg = rawValue(aiOrg)
	a.SentimentStats = rawValue(stats)
	a.CreatedAt = time.UnixMilli(created).UTC()
	a.UpdatedAt = time.UnixMilli(updated).UTC()
	return a, nil
}

func rawValue(s sql.NullString) json.RawMessage {
	if !s.Valid {
		return nil
	}
	return json.RawMessage(s.String)
}

func fromMillis(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := time.UnixMilli(ms.Int64).UTC()
	return &t
}
