package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"newshub/app"
	"newshub/domain"
)

func Articles(args []string) error {
	fset := flag.NewFlagSet("articles", flag.ContinueOnError)
	var (
		num      int
		search   string
		category string
	)
	fset.IntVar(&num, "num", 5, "number of articles")
	fset.StringVar(&search, "search", "", "text to look for in title or description")
	fset.StringVar(&category, "category", "", "comma separated categories")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if num < 1 || num > app.MaxLimit {
		return fmt.Errorf("--num should be between 1 and %d", app.MaxLimit)
	}

	e, err := loadEnv()
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := e.openStore(ctx); err != nil {
		return err
	}
	defer e.close()

	q := domain.ArticleQuery{
		Filter: domain.ArticleFilter{Search: strings.TrimSpace(search)},
		Page:   1,
		Limit:  num,
	}
	for _, c := range strings.Split(category, ",") {
		if c = strings.TrimSpace(c); c != "" {
			q.Filter.Categories = append(q.Filter.Categories, c)
		}
	}

	list, err := app.NewQueryService(e.repo, e.log).ListArticles(ctx, q)
	if err != nil {
		return fmt.Errorf("could not fetch articles: %w", err)
	}
	printArticles(os.Stdout, list, time.Now())
	return nil
}

func printArticles(w io.Writer, list domain.ArticleList, now time.Time) {
	if len(list.Articles) == 0 {
		fmt.Fprintln(w, "No articles found")
		return
	}

	fmt.Fprintf(w, "Showing %d of %s articles\n\n", len(list.Articles), humanize.Comma(list.Total))
	for i, a := range list.Articles {
		age := "unknown date"
		if a.PubDate != nil {
			age = humanize.RelTime(*a.PubDate, now, "ago", "from now")
		}
		fmt.Fprintf(w, "%d. [%s] %s\n", i+1, age, a.Title)
		if a.SourceID != "" {
			fmt.Fprintf(w, "   source: %s\n", a.SourceID)
		}
		fmt.Fprintf(w, "   %s\n\n", a.Link)
	}
}
