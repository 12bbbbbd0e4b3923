package models

import (
	"time"
)

// Session step pointers
const (
	NodeAwaitingGrade   = "awaiting_grade"
	NodeAwaitingSubject = "awaiting_subject"
	NodeDelivering      = "delivering"
	NodeRoot            = "root"
	NodeSubjectChosen   = "subject_chosen"
	NodeDone            = "done"
)

// Session stores per-(phone, channel) conversation state. A session is live
// only while now < ExpiresAt; expired rows may remain in storage but must
// never be reused.
type Session struct {
	ID          string            `json:"id" gorm:"primaryKey;size:36"`
	Phone       string            `json:"phone" gorm:"size:20;not null;index:idx_session_identity"`
	Channel     string            `json:"channel" gorm:"size:10;not null;index:idx_session_identity"`
	FlowID      uint              `json:"flow_id"`
	State       map[string]string `json:"state" gorm:"serializer:json"` // conversation context bag
	CurrentNode string            `json:"current_node" gorm:"size:100"`
	Locale      string            `json:"locale" gorm:"size:10;default:en"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	ExpiresAt   time.Time         `json:"expires_at" gorm:"index"`
}

// Live reports whether the session can still be used at the given instant.
func (s *Session) Live(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
