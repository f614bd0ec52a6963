package types

// InquiryType selects the evaluation rubric and the threshold set applied to
// positions under an inquiry.
type InquiryType string

const (
	InquiryTypeFactualAccuracy        InquiryType = "factual_accuracy"
	InquiryTypeSourceCredibility      InquiryType = "source_credibility"
	InquiryTypeScientificInquiry      InquiryType = "scientific_inquiry"
	InquiryTypeEthicalEvaluation      InquiryType = "ethical_evaluation"
	InquiryTypeMethodologicalReview   InquiryType = "methodological_review"
	InquiryTypeHistoricalVerification InquiryType = "historical_verification"
)

func (t InquiryType) Valid() bool {
	switch t {
	case InquiryTypeFactualAccuracy,
		InquiryTypeSourceCredibility,
		InquiryTypeScientificInquiry,
		InquiryTypeEthicalEvaluation,
		InquiryTypeMethodologicalReview,
		InquiryTypeHistoricalVerification:
		return true
	}
	return false
}

type InquiryStatus string

const (
	InquiryStatusActive InquiryStatus = "active"
	InquiryStatusMerged InquiryStatus = "merged"
	InquiryStatusClosed InquiryStatus = "closed"
)

type Stance string

const (
	StanceSupporting Stance = "supporting"
	StanceOpposing   Stance = "opposing"
	StanceNeutral    Stance = "neutral"
)

func (s Stance) Valid() bool {
	switch s {
	case StanceSupporting, StanceOpposing, StanceNeutral:
		return true
	}
	return false
}

// PositionStatus is the tier assigned by comparing a position's credibility
// score against its inquiry type's thresholds. Never set by clients.
type PositionStatus string

const (
	PositionStatusPendingEvaluation PositionStatus = "pending_evaluation"
	PositionStatusVerified          PositionStatus = "verified"
	PositionStatusCredible          PositionStatus = "credible"
	PositionStatusWeak              PositionStatus = "weak"
	PositionStatusExcluded          PositionStatus = "excluded"
)

// Included reports whether positions at this tier feed node-credibility aggregation.
func (s PositionStatus) Included() bool {
	return s == PositionStatusVerified || s == PositionStatusCredible
}

type AmendmentStatus string

const (
	AmendmentStatusPending  AmendmentStatus = "pending"
	AmendmentStatusApplied  AmendmentStatus = "applied"
	AmendmentStatusRejected AmendmentStatus = "rejected"
)

type EvaluationTaskStatus string

const (
	EvaluationTaskQueued     EvaluationTaskStatus = "queued"
	EvaluationTaskRunning    EvaluationTaskStatus = "running"
	EvaluationTaskSucceeded  EvaluationTaskStatus = "succeeded"
	EvaluationTaskFailed     EvaluationTaskStatus = "failed"
	EvaluationTaskDeadLetter EvaluationTaskStatus = "dead_letter"
)
