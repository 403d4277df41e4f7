package domain

import (
	"encoding/json"
	"time"
)

// OutboxEvent is a publish intent committed in the same transaction as
// the state change it describes. Payload holds the full event envelope.
type OutboxEvent struct {
	Id            int64           `db:"id"`
	EventID       string          `db:"event_id"`
	EventType     string          `db:"event_type"`
	AggregateType string          `db:"aggregate_type"`
	AggregateID   string          `db:"aggregate_id"`
	Payload       json.RawMessage `db:"payload"`
	Topic         string          `db:"topic"`
	CreatedAt     time.Time       `db:"created_at"`
	PublishedAt   *time.Time      `db:"published_at"`
	Attempts      int64           `db:"attempts"`
	LastError     *string         `db:"last_error"`
}
