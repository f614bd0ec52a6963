package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/veridia/veridia-backend/internal/logger"
	pkgerrors "github.com/veridia/veridia-backend/internal/pkg/errors"
	"github.com/veridia/veridia-backend/internal/types"
)

// EvaluationResult carries the oracle's sub-scores and qualitative feedback
// for one position.
type EvaluationResult struct {
	EvidenceQuality float64
	Coherence       float64
	Feedback        types.AIFeedbackPayload
}

// ConfidenceContext is the full input to inquiry-level confidence scoring. It
// has no vote fields: vote isolation for this track is enforced by this type,
// not by convention.
type ConfidenceContext struct {
	InquiryType types.InquiryType
	Title       string
	Description string
	// ArgumentSummaries are the included positions' arguments with their
	// stances; scores and vote counts are deliberately absent.
	ArgumentSummaries []ConfidenceArgument
}

type ConfidenceArgument struct {
	Stance   types.Stance
	Argument string
}

// Evaluator adapts the scoring oracle. Purely functional from the pipeline's
// perspective: argument + evidence in, sub-scores + feedback out.
type Evaluator interface {
	EvaluatePosition(ctx context.Context, inquiryType types.InquiryType, argument string, evidenceCategory string, evidenceLinks []string) (*EvaluationResult, error)
	EvaluateConfidence(ctx context.Context, evalCtx ConfidenceContext) (float64, error)
}

type evaluator struct {
	log    *logger.Logger
	client OpenAIClient
}

func NewEvaluator(log *logger.Logger, client OpenAIClient) Evaluator {
	return &evaluator{
		log:    log.With("service", "Evaluator"),
		client: client,
	}
}

var positionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"evidence_quality": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"coherence":        map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"strengths":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"weaknesses":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"suggestions":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
	"required":             []string{"evidence_quality", "coherence", "strengths", "weaknesses", "suggestions"},
	"additionalProperties": false,
}

var confidenceSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"rationale":  map[string]any{"type": "string"},
	},
	"required":             []string{"confidence", "rationale"},
	"additionalProperties": false,
}

func (e *evaluator) EvaluatePosition(ctx context.Context, inquiryType types.InquiryType, argument string, evidenceCategory string, evidenceLinks []string) (*EvaluationResult, error) {
	rubric := RubricFor(inquiryType)

	system := fmt.Sprintf(`You are an evidence evaluator applying the %s rubric.
Score the position's argument against these criteria:
%s%s
Return evidence_quality and coherence in [0,1], plus concrete strengths, weaknesses and suggestions.`,
		rubric.Name, rubric.CriteriaBlock(), rubric.Guidance)

	var user strings.Builder
	user.WriteString("Argument:\n")
	user.WriteString(argument)
	user.WriteString("\n\nEvidence category: ")
	user.WriteString(evidenceCategory)
	if len(evidenceLinks) > 0 {
		user.WriteString("\nEvidence links:\n")
		for _, link := range evidenceLinks {
			user.WriteString("- ")
			user.WriteString(link)
			user.WriteString("\n")
		}
	}

	raw, err := e.client.GenerateJSON(ctx, system, user.String(), "position_evaluation", positionSchema)
	if err != nil {
		return nil, pkgerrors.NewTransient("evaluate position", err)
	}

	result := &EvaluationResult{
		EvidenceQuality: clamp01(floatFromAny(raw["evidence_quality"], 0.5)),
		Coherence:       clamp01(floatFromAny(raw["coherence"], 0.5)),
		Feedback: types.AIFeedbackPayload{
			Strengths:   stringsFromAny(raw["strengths"]),
			Weaknesses:  stringsFromAny(raw["weaknesses"]),
			Suggestions: stringsFromAny(raw["suggestions"]),
		},
	}
	return result, nil
}

func (e *evaluator) EvaluateConfidence(ctx context.Context, evalCtx ConfidenceContext) (float64, error) {
	rubric := RubricFor(evalCtx.InquiryType)

	system := fmt.Sprintf(`You are assessing how settled an inquiry is, applying the %s rubric.
Consider the inquiry and the arguments below and return an overall confidence in [0,1] that the inquiry has a well-supported answer. Ignore popularity; weigh only evidentiary strength.`,
		rubric.Name)

	var user strings.Builder
	user.WriteString("Inquiry: ")
	user.WriteString(evalCtx.Title)
	user.WriteString("\n\n")
	user.WriteString(evalCtx.Description)
	user.WriteString("\n\nArguments:\n")
	for _, a := range evalCtx.ArgumentSummaries {
		user.WriteString(fmt.Sprintf("[%s] %s\n", a.Stance, a.Argument))
	}

	raw, err := e.client.GenerateJSON(ctx, system, user.String(), "inquiry_confidence", confidenceSchema)
	if err != nil {
		return 0, pkgerrors.NewTransient("evaluate confidence", err)
	}
	return clamp01(floatFromAny(raw["confidence"], 0)), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func floatFromAny(v any, fallback float64) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return fallback
	}
}

func stringsFromAny(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
