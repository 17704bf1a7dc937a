package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const refundAuditKey = "quota:refunds"

// RefundRecord captures one compensation attempt with enough detail for
// manual reconciliation when the refund write itself failed.
type RefundRecord struct {
	UserID    string    `json:"user_id"`
	Amount    int       `json:"amount"`
	Reason    string    `json:"reason"`
	Succeeded bool      `json:"succeeded"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// RefundAudit keeps a trail of quota compensation attempts in Redis,
// separate from the request log stream.
type RefundAudit struct {
	redis *redis.Client
}

func NewRefundAudit(client *redis.Client) *RefundAudit {
	return &RefundAudit{redis: client}
}

// Record appends the entry to the audit list. Auditing is itself best
// effort: a Redis failure is logged and swallowed so it can never affect
// the request outcome.
func (a *RefundAudit) Record(ctx context.Context, rec RefundRecord) {
	if a == nil || a.redis == nil {
		return
	}
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		slog.Error("failed to marshal refund audit record", "error", err)
		return
	}
	if err := a.redis.LPush(ctx, refundAuditKey, payload).Err(); err != nil {
		slog.Error("failed to write refund audit record", "error", err, "user_id", rec.UserID)
	}
}
