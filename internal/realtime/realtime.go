package realtime

// Topic names every event the pipeline publishes. Channels are node ids or
// inquiry ids; subscription layers outside this core decide what to do with
// the payloads.
type Topic string

const (
	TopicInquiryCreated           Topic = "inquiry-created"
	TopicInquiryMerged            Topic = "inquiry-merged"
	TopicPositionCreated          Topic = "position-created"
	TopicPositionScored           Topic = "position-scored"
	TopicPositionTierChanged      Topic = "position-tier-changed"
	TopicAmendmentProposed        Topic = "amendment-proposed"
	TopicAmendmentApplied         Topic = "amendment-applied"
	TopicAmendmentRejected        Topic = "amendment-rejected"
	TopicNodeCredibilityUpdated   Topic = "node-credibility-updated"
	TopicInquiryConfidenceUpdated Topic = "inquiry-confidence-updated"
)

type SSEMessage struct {
	Channel string `json:"channel"`
	Topic   Topic  `json:"topic"`
	Data    any    `json:"data,omitempty"`
}
