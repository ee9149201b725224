// Package gateway implements the JSON HTTP protocol of the SQL gateway:
// session creation and teardown, statement submission, operation status
// polling and paginated result retrieval. Handles are opaque tokens issued by
// the gateway; this package never inspects them.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/streamhouse/flinksql-go/internal/errs"
	"github.com/streamhouse/flinksql-go/internal/sentinel"
	"github.com/streamhouse/flinksql-go/logger"
)

// Operation status values surfaced by the gateway. Anything that is not
// terminal is simply re-polled.
const (
	StatusFinished = "FINISHED"
	StatusError    = "ERROR"
)

type sessionResponse struct {
	SessionHandle string `json:"sessionHandle"`
}

type operationResponse struct {
	OperationHandle string `json:"operationHandle"`
}

// StatusResponse is the polled state of one operation.
type StatusResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage"`
}

// Terminal reports whether polling should stop.
func (s *StatusResponse) Terminal() bool {
	return s.Status == StatusFinished || s.Status == StatusError
}

// OperationInfo is best-effort metadata about a finished operation. JobID may
// be absent for statement shapes the gateway does not track as jobs.
type OperationInfo struct {
	JobID string `json:"jobId"`
}

// Column describes one result column. The gateway reports more fields but
// only the name is consumed.
type Column struct {
	Name string `json:"name"`
}

// Row is one result row; fields are positional scalars.
type Row struct {
	Fields []any `json:"fields"`
}

// ResultData is the tabular payload of a result page. Columns being absent
// signals a statement with no tabular result at all.
type ResultData struct {
	Columns []Column `json:"columns"`
	Data    []Row    `json:"data"`
}

// ResultPage is one chunk of a paginated result, linked to its successor by
// NextResultURI.
type ResultPage struct {
	Results       *ResultData `json:"results"`
	NextResultURI string      `json:"nextResultUri"`
}

// HTTPStatusError is returned for non-200 gateway responses so callers can
// apply their own status-code policy.
type HTTPStatusError struct {
	Code int
	URL  string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("gateway returned status %d for %s", e.Code, e.URL)
}

// Client speaks the gateway's REST surface. The embedded retryablehttp client
// only retries transport-level failures; HTTP status codes are handed back to
// the caller untouched because every call site has its own retry policy.
type Client struct {
	baseURL string
	http    *retryablehttp.Client

	// UserAgent is sent on every request so gateway logs can attribute
	// traffic to this library.
	UserAgent string
	// pause between page fetches while paginating
	PagePause time.Duration
	// pause before re-fetching a first page that returned 500
	FetchRetryPause time.Duration
	// attempts allowed for the first page fetch
	FetchAttempts int
}

func New(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.Logger = nil
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return err != nil, nil
	}

	return &Client{
		baseURL:         baseURL,
		http:            rc,
		UserAgent:       "flinksql-go",
		PagePause:       500 * time.Millisecond,
		FetchRetryPause: 1 * time.Second,
		FetchAttempts:   3,
	}
}

// CreateSession opens a new gateway session and returns its handle.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", map[string]any{}, &resp); err != nil {
		return "", errs.WrapErr(err, errs.ErrSessionCreate)
	}
	return resp.SessionHandle, nil
}

// CloseSession deletes the session at the gateway. Best effort: the remote
// session expires on its own eventually.
func (c *Client) CloseSession(ctx context.Context, session string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/v1/sessions/%s", session), nil, nil)
}

// SubmitStatement posts a statement under the session and returns the
// operation handle identifying its execution.
func (c *Client) SubmitStatement(ctx context.Context, session, statement string) (string, error) {
	var resp operationResponse
	path := fmt.Sprintf("/v1/sessions/%s/statements", session)
	if err := c.do(ctx, http.MethodPost, path, map[string]any{"statement": statement}, &resp); err != nil {
		return "", errs.NewSubmissionError(session, errs.ErrStatementSubmit, err)
	}
	return resp.OperationHandle, nil
}

// OperationStatus polls the current status of an operation.
func (c *Client) OperationStatus(ctx context.Context, session, operation string) (*StatusResponse, error) {
	var resp StatusResponse
	path := fmt.Sprintf("/v1/sessions/%s/operations/%s/status", session, operation)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// OperationInfo fetches job metadata for an operation. The jobId field is
// best effort and may be empty.
func (c *Client) OperationInfo(ctx context.Context, session, operation string) (*OperationInfo, error) {
	var resp OperationInfo
	path := fmt.Sprintf("/v1/sessions/%s/operations/%s/info", session, operation)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FirstPageURI returns the fetch path of page 0 of an operation's result.
func FirstPageURI(session, operation string) string {
	return fmt.Sprintf("/v1/sessions/%s/operations/%s/result/0", session, operation)
}

// FetchPage GETs one result page by its URI (page 0 or a nextResultUri).
func (c *Client) FetchPage(ctx context.Context, uri string) (*ResultPage, error) {
	var page ResultPage
	if err := c.do(ctx, http.MethodGet, uri, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// AwaitTerminal polls the operation until FINISHED or ERROR, at the given
// interval, bounded by timeout. The returned StatusResponse is always
// terminal; a budget overrun yields a poll timeout error and no further
// polls are made.
func (c *Client) AwaitTerminal(ctx context.Context, session, operation string, interval, timeout time.Duration) (*StatusResponse, error) {
	log := logger.WithOperation(session, operation)

	watcher := sentinel.Sentinel{
		StatusFn: func() (sentinel.Done, any, error) {
			resp, err := c.OperationStatus(ctx, session, operation)
			if err != nil {
				return nil, nil, err
			}
			log.Debug().Str("status", resp.Status).Msg("polled operation status")
			return resp.Terminal, resp, nil
		},
	}

	status, res, err := watcher.Watch(ctx, interval, timeout)
	switch status {
	case sentinel.WatchSuccess:
		return res.(*StatusResponse), nil
	case sentinel.WatchTimeout:
		return nil, errs.NewPollTimeoutError(session, operation, timeout.Seconds())
	case sentinel.WatchCanceled:
		return nil, err
	default:
		return nil, errs.WrapErr(err, errs.ErrReadStatus)
	}
}

// do performs one JSON round trip. Responses are decoded with UseNumber so
// integral and floating fields stay distinguishable for type inference
// downstream. Non-200 responses become an HTTPStatusError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &HTTPStatusError{Code: resp.StatusCode, URL: path}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(out)
}
