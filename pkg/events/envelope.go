package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

const EnvelopeVersion = "1.0"

// Source identifies the service instance that produced an event.
type Source struct {
	Service  string `json:"service"`
	Version  string `json:"version"`
	Instance string `json:"instance"`
}

type Metadata struct {
	EventID       string    `json:"eventId"`
	EventType     string    `json:"eventType"`
	EventVersion  string    `json:"eventVersion"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlationId"`
	CausationID   string    `json:"causationId"`
	Source        Source    `json:"source"`
}

// Envelope is the wire format shared by every topic. The payload stays
// raw until DecodePayload resolves it against the event type.
type Envelope struct {
	Metadata Metadata        `json:"metadata"`
	Payload  json.RawMessage `json:"payload"`
}

// NewEnvelope wraps a typed payload. CorrelationID groups every event of
// one saga; CausationID points at the event being reacted to. An empty
// correlation id marks a flow-initiating event and defaults to the new
// event id.
func NewEnvelope(eventType, correlationID, causationID string, src Source, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	id := uuid.New().String()
	if correlationID == "" {
		correlationID = id
	}

	return &Envelope{
		Metadata: Metadata{
			EventID:       id,
			EventType:     eventType,
			EventVersion:  EnvelopeVersion,
			Timestamp:     time.Now().UTC(),
			CorrelationID: correlationID,
			CausationID:   causationID,
			Source:        src,
		},
		Payload: raw,
	}, nil
}

func Unmarshal(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}

	return &env, nil
}

// DedupID returns the identity used by the dedup ledger. A message that
// arrives without an event id is still dedupe-able: the broker
// coordinates (topic, partition, offset) are stable across redeliveries,
// so they form a deterministic fallback id.
func DedupID(env *Envelope, msg *sarama.ConsumerMessage) string {
	if env != nil && env.Metadata.EventID != "" {
		return env.Metadata.EventID
	}

	return fmt.Sprintf("%s-%d-%d", msg.Topic, msg.Partition, msg.Offset)
}
