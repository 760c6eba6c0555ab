package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/onnwee/stackchat/telemetry"
)

// Run drives the polling loop until ctx is cancelled. One cycle fetches and
// dispatches every joined room sequentially, then sleeps whatever is left of
// the heartbeat interval. The room count is expected to be small; simplicity
// beats per-room concurrency here.
//
// Shutdown is cooperative: cancellation stops new cycles and lets the
// current one finish, bounded by the transport's retry budget.
func (c *Client) Run(ctx context.Context) {
	slog.Info("chat poller starting", slog.Duration("heartbeat", c.heartbeat), slog.Duration("edit_window", c.editWindow))
	for {
		if ctx.Err() != nil {
			slog.Info("chat poller stopped")
			return
		}
		start := time.Now()
		c.pollOnce(ctx)
		wait := c.heartbeat - time.Since(start)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("chat poller stopped")
			return
		case <-timer.C:
		}
	}
}

// pollOnce runs a single cycle over a snapshot of the joined rooms. One
// room's fetch failure is reported to the consumer and does not stop the
// cycle for the others.
func (c *Client) pollOnce(ctx context.Context) {
	telemetry.IncPollCycles()
	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	ctx, span := telemetry.StartSpan(ctx, "chat", "poll_cycle")
	defer span.End()

	for _, view := range c.sessionViews() {
		if ctx.Err() != nil {
			return
		}
		// The room may have been left since the snapshot.
		if !c.joined(view.roomID) {
			continue
		}
		fetchStart := time.Now()
		batch, err := c.fetchNextBatch(ctx, view)
		telemetry.ObserveFetchDuration(time.Since(fetchStart))
		if err != nil {
			telemetry.IncFetchErrors()
			telemetry.LoggerWithCorr(ctx).Warn("room fetch failed", slog.Int("room_id", view.roomID), slog.Any("err", err))
			span.AddEvent("fetch_error", trace.WithAttributes(attribute.Int("room_id", view.roomID)))
			if h := c.currentHandler(); h != nil {
				h.OnError(view.roomID, &FetchError{RoomID: view.roomID, Err: err})
			}
			continue
		}
		c.dispatch(view, batch)
	}
}
