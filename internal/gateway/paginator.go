package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/streamhouse/flinksql-go/internal/errs"
	"github.com/streamhouse/flinksql-go/logger"
)

// ResultSet is the materialized concatenation of an operation's result pages.
type ResultSet struct {
	Columns []string
	Rows    [][]any

	// Truncated is set when pagination stopped at the page cap while the
	// gateway still advertised a next page. Callers should surface that the
	// result may be incomplete.
	Truncated bool
}

// FetchResultSet walks the linked result pages of a finished operation,
// accumulating rows and column names, bounded by maxPages.
//
// The first page gets a limited retry because the gateway can report
// FINISHED before the first result page is materialized: an HTTP 500 there
// means "not ready yet". A page without a columns descriptor means the
// statement produced no tabular result and yields an empty set without
// error. Once pagination is underway, a failed page fetch ends the walk
// early and whatever was accumulated is returned.
func (c *Client) FetchResultSet(ctx context.Context, session, operation string, maxPages int) (*ResultSet, error) {
	log := logger.WithOperation(session, operation)

	// the first page is always fetched; a non-positive cap means one page
	if maxPages < 1 {
		maxPages = 1
	}

	page, err := c.fetchFirstPage(ctx, session, operation)
	if err != nil {
		return nil, err
	}

	rs := &ResultSet{}
	pageCount := 0
	for {
		if page.Results == nil || page.Results.Columns == nil {
			// no tabular result (DDL, mutation, SET ...)
			return rs, nil
		}

		if len(rs.Columns) == 0 {
			for _, col := range page.Results.Columns {
				rs.Columns = append(rs.Columns, col.Name)
			}
		}

		// absent or empty data is not an error: intermediate pages may
		// legitimately carry zero rows
		for _, row := range page.Results.Data {
			if row.Fields != nil {
				rs.Rows = append(rs.Rows, row.Fields)
			}
		}

		if page.NextResultURI == "" {
			return rs, nil
		}
		if pageCount+1 >= maxPages {
			log.Warn().Int("maxPages", maxPages).Msg("result pagination hit the page cap, result may be truncated")
			rs.Truncated = true
			return rs, nil
		}
		pageCount++

		if c.PagePause > 0 {
			select {
			case <-time.After(c.PagePause):
			case <-ctx.Done():
				return rs, ctx.Err()
			}
		}

		page, err = c.FetchPage(ctx, page.NextResultURI)
		if err != nil {
			// transient failure mid-pagination: keep what we have
			log.Warn().Err(err).Int("pages", pageCount).Msg("result pagination ended early")
			return rs, nil
		}
	}
}

// fetchFirstPage GETs page 0, treating an intermediate 500 as results-not-
// ready and retrying after a short pause, up to the configured attempt
// budget. Any other failure is terminal for the fetch.
func (c *Client) fetchFirstPage(ctx context.Context, session, operation string) (*ResultPage, error) {
	uri := FirstPageURI(session, operation)

	var lastErr error
	for attempt := 0; attempt < c.FetchAttempts; attempt++ {
		page, err := c.FetchPage(ctx, uri)
		if err == nil {
			return page, nil
		}
		lastErr = err

		var statusErr *HTTPStatusError
		if !errors.As(err, &statusErr) || statusErr.Code != http.StatusInternalServerError {
			return nil, errs.NewFetchRetryError(session, operation, err)
		}

		if c.FetchRetryPause > 0 && attempt < c.FetchAttempts-1 {
			select {
			case <-time.After(c.FetchRetryPause):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, errs.NewFetchRetryError(session, operation, lastErr)
}
