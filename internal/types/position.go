package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Position struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	InquiryID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"inquiry_id"`
	Inquiry          *Inquiry       `gorm:"constraint:OnDelete:CASCADE;foreignKey:InquiryID;references:ID" json:"inquiry,omitempty"`
	CreatedBy        string         `gorm:"column:created_by;not null" json:"created_by"`
	Stance           Stance         `gorm:"column:stance;not null" json:"stance"`
	Argument         string         `gorm:"column:argument;not null" json:"argument"`
	EvidenceCategory string         `gorm:"column:evidence_category;not null" json:"evidence_category"`
	EvidenceLinks    datatypes.JSON `gorm:"type:jsonb;column:evidence_links" json:"evidence_links"`

	// Sub-scores start at the 0.5 placeholder and are overwritten only by
	// evaluation completion. CredibilityScore and Status are derived; no write
	// path exists for clients.
	EvidenceQuality   float64        `gorm:"column:evidence_quality;not null;default:0.5" json:"evidence_quality"`
	SourceCredibility float64        `gorm:"column:source_credibility;not null;default:0.5" json:"source_credibility"`
	Coherence         float64        `gorm:"column:coherence;not null;default:0.5" json:"coherence"`
	CredibilityScore  float64        `gorm:"column:credibility_score;not null;default:0" json:"credibility_score"`
	Upvotes           int            `gorm:"column:upvotes;not null;default:0" json:"upvotes"`
	Downvotes         int            `gorm:"column:downvotes;not null;default:0" json:"downvotes"`
	Status            PositionStatus `gorm:"column:status;not null;index" json:"status"`
	AIFeedback        datatypes.JSON `gorm:"type:jsonb;column:ai_feedback" json:"ai_feedback,omitempty"`

	// Optional explicit amendment intent, supplied at submission time. Never
	// inferred from argument text.
	ProposedFieldPath string         `gorm:"column:proposed_field_path" json:"proposed_field_path,omitempty"`
	ProposedValue     datatypes.JSON `gorm:"type:jsonb;column:proposed_value" json:"proposed_value,omitempty"`

	Evaluated bool      `gorm:"column:evaluated;not null;default:false" json:"evaluated"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Position) TableName() string { return "position" }

// AIFeedbackPayload is the qualitative feedback returned by the scoring oracle.
type AIFeedbackPayload struct {
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	Suggestions []string `json:"suggestions"`
}

// PositionVote is one voter's agree/disagree signal. Votes are the source of
// truth behind the materialized upvote/downvote counters and never reach
// credibility computation except through the bounded community-vote term.
type PositionVote struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	PositionID uuid.UUID `gorm:"type:uuid;not null;index:idx_position_voter,unique" json:"position_id"`
	VoterID    string    `gorm:"column:voter_id;not null;index:idx_position_voter,unique" json:"voter_id"`
	Value      int       `gorm:"column:value;not null" json:"value"` // +1 or -1
	CreatedAt  time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (PositionVote) TableName() string { return "position_vote" }

type EvaluationTask struct {
	ID          uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	PositionID  uuid.UUID            `gorm:"type:uuid;not null;index" json:"position_id"`
	Status      EvaluationTaskStatus `gorm:"column:status;not null;index" json:"status"`
	Attempts    int                  `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Error       string               `gorm:"column:error" json:"error"`
	LastErrorAt *time.Time           `gorm:"column:last_error_at" json:"last_error_at,omitempty"`
	LockedAt    *time.Time           `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time           `gorm:"column:heartbeat_at" json:"heartbeat_at,omitempty"`
	CreatedAt   time.Time            `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt   time.Time            `gorm:"not null;default:now()" json:"updated_at"`
}

func (EvaluationTask) TableName() string { return "evaluation_task" }
