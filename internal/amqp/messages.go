package amqp

import (
	"encoding/json"
	"time"
)

// Entities that emit change notifications.
const (
	EntityTransaction = "transaction"
	EntityTag         = "tag"
	EntityTagGroup    = "tag_group"
	EntitySetting     = "setting"
	EntityDocument    = "document"
)

// Actions carried by change notifications.
const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionSplit    = "split"
	ActionTagged   = "tagged"
	ActionUntagged = "untagged"
)

// ChangeMessage tells subscribers that an entity changed. It only carries the
// id, consumers read the current state through the HTTP API.
type ChangeMessage struct {
	Entity    string    `json:"entity"`
	Action    string    `json:"action"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChangeMessage(entity, action string, id int64) *ChangeMessage {
	return &ChangeMessage{
		Entity:    entity,
		Action:    action,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// RoutingKey is "<entity>.<action>", e.g. "transaction.split".
func (m *ChangeMessage) RoutingKey() string {
	return m.Entity + "." + m.Action
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
