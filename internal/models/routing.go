package models

import "gorm.io/gorm"

// Routing rule matcher types
const (
	MatchKeyword    = "keyword"     // exact match after normalization
	MatchStartsWith = "starts_with" // prefix match
	MatchRegex      = "regex"       // pattern match against normalized text
)

// RoutingRule maps inbound free text to a target flow. Rules are evaluated
// per channel in ascending priority order; first match wins. Equal
// priorities resolve in insertion order.
type RoutingRule struct {
	gorm.Model
	Channel    string `json:"channel" gorm:"size:10;not null;index"`
	MatchType  string `json:"match_type" gorm:"size:20;not null"`
	MatchValue string `json:"match_value" gorm:"size:255;not null"`
	TargetFlow string `json:"target_flow" gorm:"size:100;not null"`
	Priority   int    `json:"priority" gorm:"not null;default:100"`
	Active     bool   `json:"active" gorm:"default:true"`
}
