package types

import (
	"time"
)

// EvidenceCategory is seeded reference data. Weight is 0.3-1.0; a zero weight
// on a child category means "inherit from parent".
type EvidenceCategory struct {
	Code       string    `gorm:"column:code;primaryKey" json:"code"`
	Label      string    `gorm:"column:label;not null" json:"label"`
	Weight     float64   `gorm:"column:weight;not null" json:"weight"`
	ParentCode string    `gorm:"column:parent_code;index" json:"parent_code,omitempty"`
	CreatedAt  time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (EvidenceCategory) TableName() string { return "evidence_category" }

// ThresholdSet holds the three ascending cut-points for one inquiry type.
type ThresholdSet struct {
	InquiryType InquiryType `gorm:"column:inquiry_type;primaryKey" json:"inquiry_type"`
	Display     float64     `gorm:"column:display;not null" json:"display"`
	Inclusion   float64     `gorm:"column:inclusion;not null" json:"inclusion"`
	AutoAmend   float64     `gorm:"column:auto_amend;not null" json:"auto_amend"`
	CreatedAt   time.Time   `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"not null;default:now()" json:"updated_at"`
}

func (ThresholdSet) TableName() string { return "threshold_set" }

// Ascending reports whether display <= inclusion <= auto_amend holds.
func (t ThresholdSet) Ascending() bool {
	return t.Display <= t.Inclusion && t.Inclusion <= t.AutoAmend
}
