package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"tracker/internal/core"
)

// TransactionRecordedMessage announces that a transaction reached the store.
// Consumers reload the ledger rather than trusting the payload, so it only
// carries what is useful for logging and routing.
type TransactionRecordedMessage struct {
	Concept   string    `json:"concept"`
	Value     string    `json:"value"`
	Date      string    `json:"date"`
	Category  string    `json:"category"`
	Store     bool      `json:"store"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionRecordedMessage(t core.Transaction) *TransactionRecordedMessage {
	return &TransactionRecordedMessage{
		Concept:   t.Concept,
		Value:     t.Value.String(),
		Date:      t.Date.String(),
		Category:  t.Category,
		Store:     t.Store,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Transaction rebuilds the announced transaction. Subcategory is not carried.
func (m *TransactionRecordedMessage) Transaction() (core.Transaction, error) {
	value, err := core.ParseAmount(m.Value)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("message value %q: %w", m.Value, err)
	}
	date, err := core.ParseDate(m.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("message date %q: %w", m.Date, err)
	}
	return core.Transaction{
		Concept:  m.Concept,
		Value:    value,
		Date:     date,
		Category: m.Category,
		Store:    m.Store,
	}, nil
}

// TransactionRecordedMessageFromJSON decodes a message body.
func TransactionRecordedMessageFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Concept == "" {
		return nil, fmt.Errorf("decode message: %w", core.ErrEmptyConcept)
	}
	return &msg, nil
}
