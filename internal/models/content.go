package models

import "gorm.io/gorm"

// ContentTarget resolves a (subject, grade) pair collected by the SMS flow
// to deliverable lesson content. Read-only at request time.
type ContentTarget struct {
	gorm.Model
	Grade      string `json:"grade" gorm:"size:10;not null;index:idx_content_lookup"`
	Subject    string `json:"subject" gorm:"size:50;not null;index:idx_content_lookup"`
	Language   string `json:"language" gorm:"size:10;default:en"`
	Difficulty string `json:"difficulty" gorm:"size:20"`
	ContentRef string `json:"content_ref" gorm:"size:255;not null"`
	Priority   int    `json:"priority" gorm:"default:100"`
	Active     bool   `json:"active" gorm:"default:true"`
}
