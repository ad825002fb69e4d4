package cdl

import (
	"context"
	"fmt"
	"net/http"
)

// FetchCollection reads initialURL and follows "next" links until a page has none.
// Pages are returned in fetch order. A non-200 status stops immediately and
// returns the pages read so far together with a *StatusError; callers must not
// treat those pages as a complete collection.
//
// There is no page limit and no cycle detection: a server that links back to an
// earlier page keeps this loop running until ctx is cancelled.
func FetchCollection(ctx context.Context, r PageReader, initialURL string) ([]*Page, error) {
	var pages []*Page
	next := initialURL
	for {
		if err := ctx.Err(); err != nil {
			return pages, err
		}

		status, page, err := r.ReadPage(ctx, next)
		if err != nil {
			return pages, fmt.Errorf("reading %s: %w", next, err)
		}
		if status != http.StatusOK {
			return pages, &StatusError{StatusCode: status, URL: next}
		}
		pages = append(pages, page)

		target, ok := page.Next()
		if !ok {
			return pages, nil
		}
		next = target
	}
}
