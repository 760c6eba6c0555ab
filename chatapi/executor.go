package chatapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/stackchat/telemetry"
)

const (
	// fallbackRateLimitWait is used when a 409 body carries no parseable
	// wait time.
	fallbackRateLimitWait = 5 * time.Second
	// overloadedWait is the fixed pause after a 429 ("server overloaded",
	// distinct from the application-level 409).
	overloadedWait = 5 * time.Second
)

// execOptions tune a single executor call.
type execOptions struct {
	// accept lists status codes returned to the caller as-is. Empty accepts
	// anything. 404/409/429 are handled before this check regardless.
	accept []int
	// wantJSON retries responses whose body is not valid JSON, which handles
	// the service occasionally serving an HTML error page with status 200.
	wantJSON bool
}

// apiResponse is the normalized result of a successful executor call.
type apiResponse struct {
	Status int
	Body   []byte
}

// execute sends the request produced by newReq, retrying across transient
// transport failures, rate limiting, and unexpected status codes until the
// attempt budget is spent. newReq is a factory because a request body cannot
// be replayed once consumed.
//
// 404 is always returned to the caller immediately: depending on the
// operation it means "room gone" or "resource gone", and only the caller
// knows which.
func (c *Client) execute(ctx context.Context, op string, newReq func() (*http.Request, error), opts execOptions) (*apiResponse, error) {
	policy := c.Retry.withDefaults()
	state := RetryState{}
	var lastErr error

	for !state.Exhausted(policy) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("%s: build request: %w", op, err)
		}
		resp, err := c.http().Do(req.WithContext(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !IsTransient(err) {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			lastErr = err
			state = state.Failed()
			slog.Debug("chat request failed", slog.String("op", op), slog.Int("attempt", state.Attempts), slog.Any("err", err))
			continue
		}
		body, readErr := io.ReadAll(resp.Body)
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
		if readErr != nil {
			lastErr = fmt.Errorf("read body: %w", readErr)
			state = state.Failed()
			continue
		}

		switch resp.StatusCode {
		case http.StatusNotFound:
			return &apiResponse{Status: resp.StatusCode, Body: body}, nil
		case http.StatusConflict:
			state = state.RateLimited()
			wait, ok := ParseWaitSeconds(string(body))
			if !ok {
				wait = fallbackRateLimitWait
			}
			if d := state.RateLimitDelay(policy); d > wait {
				wait = d
			}
			telemetry.IncRateLimited()
			slog.Warn("chat rate limited", slog.String("op", op), slog.Duration("wait", wait), slog.Int("hits", state.RateLimitHits))
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		case http.StatusTooManyRequests:
			slog.Warn("chat server overloaded", slog.String("op", op), slog.Duration("wait", overloadedWait))
			if err := c.sleep(ctx, overloadedWait); err != nil {
				return nil, err
			}
			continue
		}

		if len(opts.accept) > 0 && !statusIn(resp.StatusCode, opts.accept) {
			lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
			state = state.Failed()
			slog.Warn("chat request bad status", slog.String("op", op), slog.Int("status", resp.StatusCode), slog.Int("attempt", state.Attempts))
			continue
		}
		if opts.wantJSON && !json.Valid(body) {
			lastErr = fmt.Errorf("response body is not JSON (status %d)", resp.StatusCode)
			state = state.Failed()
			slog.Warn("chat request malformed body", slog.String("op", op), slog.Int("attempt", state.Attempts))
			continue
		}
		return &apiResponse{Status: resp.StatusCode, Body: body}, nil
	}

	return nil, &RequestError{Op: op, Attempts: state.Attempts, Err: lastErr}
}

func statusIn(code int, accept []int) bool {
	for _, a := range accept {
		if code == a {
			return true
		}
	}
	return false
}

// sleepCtx is the default sleep used by the executor; tests replace
// Client.sleep to record delays instead of waiting them out.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
