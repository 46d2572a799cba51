package events

import (
	"encoding/json"
	"time"
)

// Envelope is the shared event shape carried by the in-process bus.
// Producers marshal their payload into Data; consumers decode it by EventType.
type Envelope struct {
	EventID        string          `json:"event_id"`
	EventType      string          `json:"event_type"`
	SourceService  string          `json:"source_service"`
	OccurredAtUTC  time.Time       `json:"occurred_at_utc"`
	CorrelationID  string          `json:"correlation_id,omitempty"`
	EntityType     string          `json:"entity_type"`
	EntityID       string          `json:"entity_id"`
	PayloadVersion int             `json:"payload_version"`
	Data           json.RawMessage `json:"data"`
}

func NewEnvelope(
	eventID string,
	eventType string,
	source string,
	entityType string,
	entityID string,
	occurredAt time.Time,
	payload any,
) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:        eventID,
		EventType:      eventType,
		SourceService:  source,
		OccurredAtUTC:  occurredAt.UTC(),
		EntityType:     entityType,
		EntityID:       entityID,
		PayloadVersion: 1,
		Data:           data,
	}, nil
}
