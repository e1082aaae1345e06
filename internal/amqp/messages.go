package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmptyTransactionID = errors.New("transaction id is required")
	ErrUnknownAction      = errors.New("unknown event action")
)

// Event actions.
const (
	ActionRecorded = "recorded"
	ActionDeleted  = "deleted"
)

// TransactionEvent announces that a transaction was stored or deleted. It
// only carries the ID; consumers reload from their source of truth.
type TransactionEvent struct {
	TransactionID string    `json:"transaction_id"`
	Action        string    `json:"action"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionEvent(id, action string) *TransactionEvent {
	return &TransactionEvent{
		TransactionID: id,
		Action:        action,
		Timestamp:     time.Now(),
	}
}

func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventFromJSON decodes and validates a message body. Bodies
// without an action are treated as "recorded".
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.TransactionID == "" {
		return nil, ErrEmptyTransactionID
	}
	switch msg.Action {
	case "":
		msg.Action = ActionRecorded
	case ActionRecorded, ActionDeleted:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, msg.Action)
	}
	return &msg, nil
}
