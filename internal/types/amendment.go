package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type NodeAmendment struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	// The partial unique index is the cross-process backstop for the
	// one-pending-amendment-per-(node, field path) rule.
	NodeID        string          `gorm:"column:node_id;not null;index:idx_amendment_node_path;index:uidx_amendment_pending_path,unique,where:status = 'pending'" json:"node_id"`
	FieldPath     string          `gorm:"column:field_path;not null;index:idx_amendment_node_path;index:uidx_amendment_pending_path,unique,where:status = 'pending'" json:"field_path"`
	OriginalValue datatypes.JSON  `gorm:"type:jsonb;column:original_value" json:"original_value"`
	NewValue      datatypes.JSON  `gorm:"type:jsonb;column:new_value" json:"new_value"`
	InquiryID     *uuid.UUID      `gorm:"type:uuid;column:inquiry_id;index" json:"inquiry_id,omitempty"`
	PositionID    *uuid.UUID      `gorm:"type:uuid;column:position_id;index" json:"position_id,omitempty"`
	ProposedBy    string          `gorm:"column:proposed_by;not null" json:"proposed_by"`
	Explanation   string          `gorm:"column:explanation" json:"explanation"`
	Status        AmendmentStatus `gorm:"column:status;not null;index" json:"status"`

	ProposedAt      time.Time  `gorm:"column:proposed_at;not null" json:"proposed_at"`
	AppliedAt       *time.Time `gorm:"column:applied_at" json:"applied_at,omitempty"`
	AppliedBy       string     `gorm:"column:applied_by" json:"applied_by,omitempty"`
	RejectedAt      *time.Time `gorm:"column:rejected_at" json:"rejected_at,omitempty"`
	RejectedBy      string     `gorm:"column:rejected_by" json:"rejected_by,omitempty"`
	RejectionReason string     `gorm:"column:rejection_reason" json:"rejection_reason,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (NodeAmendment) TableName() string { return "node_amendment" }

// AmendmentRecord is the append-only history of applied amendments per
// (node, field path). Rows are written once and never updated.
type AmendmentRecord struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AmendmentID uuid.UUID      `gorm:"type:uuid;not null;index" json:"amendment_id"`
	NodeID      string         `gorm:"column:node_id;not null;index:idx_record_node_path" json:"node_id"`
	FieldPath   string         `gorm:"column:field_path;not null;index:idx_record_node_path" json:"field_path"`
	PriorValue  datatypes.JSON `gorm:"type:jsonb;column:prior_value" json:"prior_value"`
	NewValue    datatypes.JSON `gorm:"type:jsonb;column:new_value" json:"new_value"`
	AppliedBy   string         `gorm:"column:applied_by;not null" json:"applied_by"`
	AppliedAt   time.Time      `gorm:"column:applied_at;not null" json:"applied_at"`
}

func (AmendmentRecord) TableName() string { return "amendment_record" }
