package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"newshub/app"
	"newshub/domain"
)

func Status(args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := e.openStore(ctx); err != nil {
		return err
	}
	defer e.close()

	st, err := app.NewQueryService(e.repo, e.log).Status(ctx)
	if err != nil {
		return fmt.Errorf("could not read status: %w", err)
	}
	printStatus(os.Stdout, e.cfg.StoreDriver, st, time.Now())
	return nil
}

func printStatus(w io.Writer, driver string, st domain.StoreStatus, now time.Time) {
	latest := "none"
	if st.LatestArticle != nil {
		latest = fmt.Sprintf("%s (%s)",
			st.LatestArticle.Format(time.RFC3339),
			humanize.RelTime(*st.LatestArticle, now, "ago", "from now"),
		)
	}
	fmt.Fprintf(w, "Store:          %s (%s)\n", driver, st.Database)
	fmt.Fprintf(w, "Total articles: %s\n", humanize.Comma(st.TotalArticles))
	fmt.Fprintf(w, "Latest article: %s\n", latest)
}
