// Package mongodb stores articles as documents in a single collection with a
// unique index on article_id.
package mongodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"newshub/domain"
)

const collectionName = "articles"

type Repository struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

// Open connects to uri and uses the articles collection of database.
func Open(ctx context.Context, uri, database string) (*Repository, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	return &Repository{
		client: client,
		coll:   client.Database(database).Collection(collectionName),
		now:    time.Now,
	}, nil
}

func (r *Repository) Ensure(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "article_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "pubDate", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func (r *Repository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

// UpsertArticle overwrites every field; createdAt is only written on insert.
func (r *Repository) UpsertArticle(ctx context.Context, a domain.Article) (bool, error) {
	now := r.now().UTC()
	doc := toDocument(a)
	doc.UpdatedAt = now
	update := bson.M{
		"$set":         doc,
		"$setOnInsert": bson.M{"createdAt": now},
	}
	filter := bson.M{"article_id": a.ArticleID}
	opts := options.Update().SetUpsert(true)

	res, err := r.coll.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		// A concurrent upsert created the document first; ours is now an update.
		res, err = r.coll.UpdateOne(ctx, filter, update, opts)
	}
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

func (r *Repository) ListArticles(ctx context.Context, f domain.ArticleFilter, offset, limit int) ([]domain.Article, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "pubDate", Value: -1}, {Key: "article_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, buildFilter(f), opts)
	if err != nil {
		return nil, err
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Article, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *Repository) CountArticles(ctx context.Context, f domain.ArticleFilter) (int64, error) {
	return r.coll.CountDocuments(ctx, buildFilter(f))
}

func (r *Repository) FilterOptions(ctx context.Context) (domain.FilterOptions, error) {
	var opts domain.FilterOptions
	for _, field := range []struct {
		name string
		dst  *[]string
	}{
		{"language", &opts.Languages},
		{"country", &opts.Countries},
		{"category", &opts.Categories},
		{"datatype", &opts.Datatypes},
	} {
		values, err := r.coll.Distinct(ctx, field.name, bson.M{})
		if err != nil {
			return opts, fmt.Errorf("distinct %s: %w", field.name, err)
		}
		*field.dst = distinctStrings(values)
	}
	return opts, nil
}

func (r *Repository) LatestPubDate(ctx context.Context) (*time.Time, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "pubDate", Value: -1}}).
		SetProjection(bson.M{"pubDate": 1})
	var doc struct {
		PubDate *time.Time `bson:"pubDate"`
	}
	err := r.coll.FindOne(ctx, bson.M{"pubDate": bson.M{"$type": "date"}}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if doc.PubDate == nil {
		return nil, nil
	}
	t := doc.PubDate.UTC()
	return &t, nil
}

func buildFilter(f domain.ArticleFilter) bson.M {
	filter := bson.M{}
	if f.From != nil || f.To != nil {
		rng := bson.M{}
		if f.From != nil {
			rng["$gte"] = f.From.UTC()
		}
		if f.To != nil {
			rng["$lte"] = f.To.UTC()
		}
		filter["pubDate"] = rng
	}
	if f.Author != "" {
		// A regex on an array field matches when any element matches.
		filter["creator"] = containsRegex(f.Author)
	}
	if f.Language != "" {
		filter["language"] = f.Language
	}
	if len(f.Countries) > 0 {
		filter["country"] = bson.M{"$in": f.Countries}
	}
	if len(f.Categories) > 0 {
		filter["category"] = bson.M{"$all": f.Categories}
	}
	if f.Datatype != "" {
		filter["datatype"] = f.Datatype
	}
	if f.Search != "" {
		re := containsRegex(f.Search)
		filter["$or"] = bson.A{bson.M{"title": re}, bson.M{"description": re}}
	}
	return filter
}

func containsRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

func distinctStrings(values []interface{}) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

type document struct {
	ArticleID      string     `bson:"article_id"`
	Title          string     `bson:"title"`
	Link           string     `bson:"link"`
	Description    string     `bson:"description"`
	Content        string     `bson:"content"`
	VideoURL       string     `bson:"video_url"`
	Keywords       []string   `bson:"keywords"`
	Creator        []string   `bson:"creator"`
	Country        []string   `bson:"country"`
	Category       []string   `bson:"category"`
	PubDate        *time.Time `bson:"pubDate"`
	ImageURL       string     `bson:"image_url"`
	SourceID       string     `bson:"source_id"`
	SourcePriority *int64     `bson:"source_priority"`
	SourceURL      string     `bson:"source_url"`
	SourceIcon     string     `bson:"source_icon"`
	Language       string     `bson:"language"`
	AITag          any        `bson:"ai_tag"`
	Sentiment      string     `bson:"sentiment"`
	AIRegion       any        `bson:"ai_region"`
	AIOrg          any        `bson:"ai_org"`
	SentimentStats any        `bson:"sentiment_stats"`
	Duplicate      bool       `bson:"duplicate"`
	Datatype       string     `bson:"datatype"`
	CreatedAt      time.Time  `bson:"createdAt,omitempty"`
	UpdatedAt      time.Time  `bson:"updatedAt"`
}

func toDocument(a domain.Article) document {
	datatype := a.Datatype
	if datatype == "" {
		datatype = domain.DefaultDatatype
	}
	var pub *time.Time
	if a.PubDate != nil {
		t := a.PubDate.UTC()
		pub = &t
	}
	return document{
		ArticleID:      a.ArticleID,
		Title:          a.Title,
		Link:           a.Link,
		Description:    a.Description,
		Content:        a.Content,
		VideoURL:       a.VideoURL,
		Keywords:       orEmpty(a.Keywords),
		Creator:        orEmpty(a.Creator),
		Country:        orEmpty(a.Country),
		Category:       orEmpty(a.Category),
		PubDate:        pub,
		ImageURL:       a.ImageURL,
		SourceID:       a.SourceID,
		SourcePriority: a.SourcePriority,
		SourceURL:      a.SourceURL,
		SourceIcon:     a.SourceIcon,
		Language:       a.Language,
		AITag:          fromRaw(a.AITag),
		Sentiment:      a.Sentiment,
		AIRegion:       fromRaw(a.AIRegion),
		AIOrg:          fromRaw(a.AIOrg),
		SentimentStats: fromRaw(a.SentimentStats),
		Duplicate:      a.Duplicate,
		Datatype:       datatype,
	}
}

func (d document) toDomain() domain.Article {
	var pub *time.Time
	if d.PubDate != nil {
		t := d.PubDate.UTC()
		pub = &t
	}
	return domain.Article{
		ArticleID:      d.ArticleID,
		Title:          d.Title,
		Link:           d.Link,
		Description:    d.Description,
		Content:        d.Content,
		VideoURL:       d.VideoURL,
		Keywords:       orEmpty(d.Keywords),
		Creator:        orEmpty(d.Creator),
		Country:        orEmpty(d.Country),
		Category:       orEmpty(d.Category),
		PubDate:        pub,
		ImageURL:       d.ImageURL,
		SourceID:       d.SourceID,
		SourcePriority: d.SourcePriority,
		SourceURL:      d.SourceURL,
		SourceIcon:     d.SourceIcon,
		Language:       d.Language,
		AITag:          toRaw(d.AITag),
		Sentiment:      d.Sentiment,
		AIRegion:       toRaw(d.AIRegion),
		AIOrg:          toRaw(d.AIOrg),
		SentimentStats: toRaw(d.SentimentStats),
		Duplicate:      d.Duplicate,
		Datatype:       d.Datatype,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
}

// fromRaw turns opaque JSON into a value the BSON encoder can store as a
// native document. Invalid JSON is kept as a string.
func fromRaw(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

func toRaw(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
