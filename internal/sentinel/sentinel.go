// Package sentinel implements a bounded watch loop used to poll asynchronous
// gateway operations until they reach a terminal state.
package sentinel

import (
	"context"
	"fmt"
	"time"

	"github.com/streamhouse/flinksql-go/logger"
)

const DEFAULT_INTERVAL = 1 * time.Second

type WatchStatus int

const (
	WatchSuccess WatchStatus = iota
	WatchErr
	WatchTimeout
	WatchCanceled
)

func (s WatchStatus) String() string {
	switch s {
	case WatchSuccess:
		return "SUCCESS"
	case WatchErr:
		return "ERROR"
	case WatchCanceled:
		return "CANCELED"
	case WatchTimeout:
		return "TIMEOUT"
	}
	return "<UNSET>"
}

type Done func() bool

// Sentinel polls StatusFn on a fixed interval until the returned Done
// function reports true, StatusFn errors, the context is canceled, or the
// timeout elapses. OnCancelFn, when set, runs on cancellation so the caller
// can release remote resources.
type Sentinel struct {
	StatusFn   func() (doneFn Done, statusResp any, err error)
	OnCancelFn func() (onCancelFnResp any, err error)
}

// Watch drives the poll loop. A zero interval selects the package default; a
// zero timeout means watch until done or canceled. The first StatusFn call
// happens after one interval, matching the gateway's behavior of rarely
// finishing a statement faster than that.
func (s Sentinel) Watch(ctx context.Context, interval, timeout time.Duration) (WatchStatus, any, error) {
	if s.StatusFn == nil {
		s.StatusFn = func() (Done, any, error) { return func() bool { return true }, nil, nil }
	}
	if interval == 0 {
		interval = DEFAULT_INTERVAL
	}

	var timeoutTimerCh <-chan time.Time
	if timeout != 0 {
		timeoutTimer := time.NewTimer(timeout)
		timeoutTimerCh = timeoutTimer.C
		defer timeoutTimer.Stop()
	}

	intervalTimer := time.NewTimer(interval)
	defer intervalTimer.Stop()

	for {
		select {
		case <-intervalTimer.C:
			done, statusResp, err := s.StatusFn()
			if err != nil {
				return WatchErr, statusResp, err
			}
			if done() {
				return WatchSuccess, statusResp, nil
			}
			// reset so StatusFn runs again after a full interval
			_ = intervalTimer.Reset(interval)
		case <-ctx.Done():
			_ = intervalTimer.Stop()
			if s.OnCancelFn != nil {
				ret, err := s.OnCancelFn()
				if err == nil {
					err = ctx.Err()
				}
				return WatchCanceled, ret, err
			}
			return WatchCanceled, nil, ctx.Err()
		case <-timeoutTimerCh:
			_ = intervalTimer.Stop()
			logger.Log.Debug().Msgf("watch timed out after %s", timeout.String())
			return WatchTimeout, nil, fmt.Errorf("sentinel timed out")
		}
	}
}
