package modboot

import (
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// NewCloudEvent wraps a lifecycle payload in a CloudEvent with a UUIDv7 id.
// Extensions are set as CloudEvent extension attributes. The event is
// validated before it is returned.
func NewCloudEvent(eventType, source string, payload any, extensions map[string]any) (cloudevents.Event, error) {
	event := cloudevents.NewEvent(cloudevents.VersionV1)
	event.SetID(newEventID())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())

	if payload != nil {
		if err := event.SetData(cloudevents.ApplicationJSON, payload); err != nil {
			return event, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
		}
	}
	for name, value := range extensions {
		event.SetExtension(name, value)
	}

	return event, ValidateCloudEvent(event)
}

func newEventID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// ValidateCloudEvent reports whether event carries every attribute CloudEvents
// 1.0 requires.
func ValidateCloudEvent(event cloudevents.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid CloudEvent: %w", err)
	}
	return nil
}
