package models

import "time"

// Message directions
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// MessageStatus is the delivery state of an audit-log row.
type MessageStatus string

const (
	StatusQueued    MessageStatus = "queued"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusFailed    MessageStatus = "failed"
	StatusReceived  MessageStatus = "received"
)

func (s MessageStatus) String() string {
	return string(s)
}

func (s MessageStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusSent, StatusDelivered, StatusFailed, StatusReceived:
		return true
	}
	return false
}

// Message is one append-only audit-log row covering every inbound and
// outbound message the gateway touches. Rows are never mutated except to
// attach status and timestamps when an outbound send resolves.
type Message struct {
	ID          uint          `json:"id" gorm:"primaryKey;autoIncrement"`
	Direction   string        `json:"direction" gorm:"size:3;not null;index"`
	Channel     string        `json:"channel" gorm:"size:10;not null"`
	Phone       string        `json:"phone" gorm:"size:20;not null;index"`
	Body        string        `json:"body" gorm:"type:text"`
	Status      MessageStatus `json:"status" gorm:"size:20;not null;index"`
	Error       *string       `json:"error,omitempty" gorm:"type:text"`
	FlowID      *uint         `json:"flow_id,omitempty"`
	SessionID   *string       `json:"session_id,omitempty" gorm:"size:36;index"`
	CreatedAt   time.Time     `json:"created_at"`
	SentAt      *time.Time    `json:"sent_at,omitempty"`
	DeliveredAt *time.Time    `json:"delivered_at,omitempty"`
}
