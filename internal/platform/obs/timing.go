package obs

import (
	"context"
	"log/slog"
	"time"
)

type ctxKey string

const RequestIDKey ctxKey = "req_id"

// WithRequestID tags ctx so that Time can correlate operations with the request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// Time logs the duration of op when the returned func runs. Pass a pointer to
// the caller's named error so failures are logged with it.
func Time(ctx context.Context, op string) func(errp *error) {
	start := time.Now()

	reqID := RequestID(ctx)

	return func(errp *error) {
		dur := time.Since(start)

		if errp != nil && *errp != nil {
			slog.Warn("op failed", "req_id", reqID, "op", op, "dur_ms", dur.Milliseconds(), "err", *errp)
			return
		}
		slog.Debug("op done", "req_id", reqID, "op", op, "dur_ms", dur.Milliseconds())
	}
}
