package models

import (
	"time"

	"gorm.io/gorm"
)

// Channel identifiers used across the gateway
const (
	ChannelSMS  = "sms"
	ChannelUSSD = "ussd"
)

// Consent sources
const (
	ConsentSourceWebForm    = "web_form"
	ConsentSourceKeyword    = "keyword"
	ConsentSourceEnrollment = "enrollment"
)

// ConsentRecord tracks opt-in/opt-out state per (phone, channel).
// Records are never deleted - opt-out flips the flag but keeps the row
// for compliance audits.
type ConsentRecord struct {
	gorm.Model
	Phone       string     `json:"phone" gorm:"uniqueIndex:idx_consent_identity;size:20;not null"`
	Channel     string     `json:"channel" gorm:"uniqueIndex:idx_consent_identity;size:10;not null"`
	OptedIn     bool       `json:"opted_in"`
	Source      string     `json:"source"` // "web_form", "keyword", "enrollment"
	ConsentedAt *time.Time `json:"consented_at"`
	Locale      string     `json:"locale" gorm:"size:10;default:en"`
}
