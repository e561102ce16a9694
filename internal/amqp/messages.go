package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record kinds carried in change messages.
const (
	KindExpense = "expense"
	KindIncome  = "income"
)

// RecordChangedMessage tells the backup worker that a record was
// created or updated. It carries only the kind, id and version; the
// worker fetches the current row from the database, so a stale
// delivery never overwrites newer data.
type RecordChangedMessage struct {
	Kind      string    `json:"kind"`
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordChangedMessage(kind string, id, version int64) *RecordChangedMessage {
	return &RecordChangedMessage{
		Kind:      kind,
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *RecordChangedMessage) Validate() error {
	if m.Kind != KindExpense && m.Kind != KindIncome {
		return fmt.Errorf("unknown record kind %q", m.Kind)
	}
	if m.ID <= 0 {
		return fmt.Errorf("invalid record id %d", m.ID)
	}
	return nil
}

func (m *RecordChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordChangedMessageFromJSON(data []byte) (*RecordChangedMessage, error) {
	var msg RecordChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MonthClonedMessage announces a completed month clone. Published for
// auditing; the backup worker logs it and triggers a pending-record
// scan since cloned rows arrive in bulk.
type MonthClonedMessage struct {
	SourceMonthID int64     `json:"source_month_id"`
	NextMonthID   int64     `json:"next_month_id"`
	ClonedCount   int       `json:"cloned_count"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewMonthClonedMessage(sourceID, nextID int64, count int) *MonthClonedMessage {
	return &MonthClonedMessage{
		SourceMonthID: sourceID,
		NextMonthID:   nextID,
		ClonedCount:   count,
		Timestamp:     time.Now(),
	}
}

func (m *MonthClonedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
