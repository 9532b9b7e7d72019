package events

import "time"

// TopicUserEvents carries user lifecycle events published by the identity provider bridge.
const TopicUserEvents = "user.events"

// Event types carried in the "eventType" message attribute.
const (
	TypeUserCreated = "user.created"
	TypeUserDeleted = "user.deleted"
)

// AttrEventType names the Pub/Sub attribute holding the event type.
const AttrEventType = "eventType"

// UserCreated is published when the identity provider registers a new user.
type UserCreated struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email,omitempty"`
	PhotoURL  string    `json:"photoUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// UserDeleted is emitted when a user is removed from the identity provider.
type UserDeleted struct {
	UserID    string    `json:"userId"`
	DeletedAt time.Time `json:"deletedAt,omitempty"`
}

// PushEnvelope is the body of a Pub/Sub push delivery.
type PushEnvelope struct {
	Message      PushMessage `json:"message"`
	Subscription string      `json:"subscription"`
}

// PushMessage is the message part of a push delivery. Data is base64 in the wire format;
// encoding/json decodes it into raw bytes.
type PushMessage struct {
	Data        []byte            `json:"data"`
	Attributes  map[string]string `json:"attributes"`
	MessageID   string            `json:"messageId"`
	PublishTime time.Time         `json:"publishTime"`
}

// EventType returns the eventType attribute, or "" when absent.
func (m PushMessage) EventType() string {
	if m.Attributes == nil {
		return ""
	}
	return m.Attributes[AttrEventType]
}
