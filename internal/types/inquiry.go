package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Inquiry struct {
	ID                     uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	NodeID                 string         `gorm:"column:node_id;not null;index" json:"node_id"`
	EdgeID                 string         `gorm:"column:edge_id;index" json:"edge_id,omitempty"`
	Type                   InquiryType    `gorm:"column:type;not null;index" json:"type"`
	Title                  string         `gorm:"column:title;not null" json:"title"`
	Description            string         `gorm:"column:description;not null" json:"description"`
	Embedding              datatypes.JSON `gorm:"type:jsonb;column:embedding" json:"-"`
	Status                 InquiryStatus  `gorm:"column:status;not null;index" json:"status"`
	MergedIntoID           *uuid.UUID     `gorm:"type:uuid;column:merged_into_id" json:"merged_into_id,omitempty"`
	DuplicateJustification string         `gorm:"column:duplicate_justification" json:"duplicate_justification,omitempty"`
	Confidence             *float64       `gorm:"column:confidence" json:"confidence,omitempty"`
	CreatedBy              string         `gorm:"column:created_by;not null" json:"created_by"`
	CreatedAt              time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt              time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Inquiry) TableName() string { return "inquiry" }

// InquiryRelatedNode declares one node of the related-node set used as the
// confidence ceiling (weakest-link rule) for an inquiry.
type InquiryRelatedNode struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	InquiryID uuid.UUID `gorm:"type:uuid;not null;index:idx_inquiry_related_node,unique" json:"inquiry_id"`
	NodeID    string    `gorm:"column:node_id;not null;index:idx_inquiry_related_node,unique" json:"node_id"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (InquiryRelatedNode) TableName() string { return "inquiry_related_node" }

// ConfidenceAudit records every confidence write: the raw oracle score, the
// stored (possibly clamped) value, and the limiting node when clamped.
type ConfidenceAudit struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	InquiryID     uuid.UUID `gorm:"type:uuid;not null;index" json:"inquiry_id"`
	RawScore      float64   `gorm:"column:raw_score;not null" json:"raw_score"`
	StoredScore   float64   `gorm:"column:stored_score;not null" json:"stored_score"`
	LimitingNode  string    `gorm:"column:limiting_node" json:"limiting_node,omitempty"`
	EvaluatedBy   string    `gorm:"column:evaluated_by;not null" json:"evaluated_by"`
	CreatedAt     time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ConfidenceAudit) TableName() string { return "confidence_audit" }
