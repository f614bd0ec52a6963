package services

import (
	"strings"

	"github.com/veridia/veridia-backend/internal/types"
)

// Rubric is the type-specific evaluation frame handed to the scoring oracle.
// Rubrics live in a fixed table keyed by inquiry type; selection is a map
// lookup, never reflection.
type Rubric struct {
	Name     string
	Criteria []string
	Guidance string
}

var rubricTable = map[types.InquiryType]Rubric{
	types.InquiryTypeFactualAccuracy: {
		Name: "factual-accuracy",
		Criteria: []string{
			"verifiability of the stated facts",
			"primary-source proximity",
			"internal consistency with the cited evidence",
			"absence of misleading framing",
		},
		Guidance: "Weigh direct documentary support heavily. Penalize claims that outrun their citations.",
	},
	types.InquiryTypeSourceCredibility: {
		Name: "source-credibility",
		Criteria: []string{
			"source reputation and track record",
			"editorial or review process of the source",
			"independence and conflicts of interest",
			"transparency of underlying data",
		},
		Guidance: "Judge the chain of custody of the evidence, not the popularity of its publisher.",
	},
	types.InquiryTypeScientificInquiry: {
		Name: "scientific-inquiry",
		Criteria: []string{
			"reproducibility of the reported results",
			"peer-review status and venue quality",
			"statistical rigor (power, controls, corrections)",
			"falsifiability of the stated hypothesis",
		},
		Guidance: "Prefer pre-registered, replicated findings. A single unreplicated study caps evidence quality.",
	},
	types.InquiryTypeEthicalEvaluation: {
		Name: "ethical-evaluation",
		Criteria: []string{
			"clarity of the normative framework invoked",
			"consideration of affected parties",
			"consistency with stated principles",
			"acknowledgment of competing values",
		},
		Guidance: "Score argument structure and evenhandedness, not agreement with any particular framework.",
	},
	types.InquiryTypeMethodologicalReview: {
		Name: "methodological-review",
		Criteria: []string{
			"appropriateness of the method for the question",
			"sampling and measurement validity",
			"handling of confounders and bias",
			"transparency of procedure",
		},
		Guidance: "A sound method weakly applied scores below a modest method applied rigorously.",
	},
	types.InquiryTypeHistoricalVerification: {
		Name: "historical-verification",
		Criteria: []string{
			"primary-source corroboration",
			"provenance and dating of documents",
			"agreement across independent accounts",
			"distinction between contemporaneous and retrospective sources",
		},
		Guidance: "Contemporaneous, independently corroborated sources dominate later retellings.",
	},
}

// RubricFor returns the rubric for an inquiry type, falling back to the
// factual-accuracy rubric for anything unknown.
func RubricFor(t types.InquiryType) Rubric {
	if r, ok := rubricTable[t]; ok {
		return r
	}
	return rubricTable[types.InquiryTypeFactualAccuracy]
}

func (r Rubric) CriteriaBlock() string {
	var b strings.Builder
	for _, c := range r.Criteria {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteString("\n")
	}
	return b.String()
}
