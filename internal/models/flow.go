package models

import "gorm.io/gorm"

// Well-known flow names
const (
	FlowSMSLearning = "sms_learning"
	FlowUSSDMenu    = "ussd_menu"
)

// FlowDefinition describes a conversational flow. The Definition field holds
// a serialized node graph for future generic interpretation; the SMS and
// USSD engines currently drive their own hard-coded step logic and only use
// the flow row as an identity to bind sessions and messages to.
type FlowDefinition struct {
	gorm.Model
	Name       string `json:"name" gorm:"size:100;not null;index"`
	Channel    string `json:"channel" gorm:"size:10;not null"`
	Locale     string `json:"locale" gorm:"size:10;default:en"`
	Version    int    `json:"version" gorm:"default:1"`
	Definition string `json:"definition" gorm:"type:text"` // serialized node graph
	EntryNode  string `json:"entry_node" gorm:"size:100"`
	Active     bool   `json:"active" gorm:"default:true"`
}
