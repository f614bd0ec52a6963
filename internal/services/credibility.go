package services

import (
	"net"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/veridia/veridia-backend/internal/types"
)

// Formula weights. credibilityScore =
//   0.50 * evidenceQuality * evidenceCategoryWeight
// + 0.25 * sourceCredibilityScore
// + 0.20 * coherence
// + 0.05 * communityVoteScore
// clamped into [0,1]. Pure and idempotent: recomputing with the same inputs
// always yields the same score.
const (
	weightEvidenceQuality   = 0.50
	weightSourceCredibility = 0.25
	weightCoherence         = 0.20
	weightCommunityVote     = 0.05

	// Corroboration across positions can lift source credibility by at most
	// this much, and never above 1.0.
	maxCorroborationBonus = 0.10
	corroborationStep     = 0.05
)

// Stance weights for node-level aggregation.
const (
	stanceWeightSupporting = 1.0
	stanceWeightOpposing   = -1.0
	stanceWeightNeutral    = 0.5
)

// CredibilityInputs is everything the position formula reads.
type CredibilityInputs struct {
	EvidenceQuality   float64
	Coherence         float64
	EvidenceWeight    float64
	SourceCredibility float64
	Upvotes           int
	Downvotes         int
}

// CommunityVoteScore maps raw counters into [0,1]:
// clamp((up-down)/max(up+down,1), -1, 1) rescaled via (x+1)/2. This is the
// only channel through which votes touch credibility, bounded by the 5% term.
func CommunityVoteScore(upvotes, downvotes int) float64 {
	total := upvotes + downvotes
	if total < 1 {
		total = 1
	}
	x := float64(upvotes-downvotes) / float64(total)
	if x < -1 {
		x = -1
	}
	if x > 1 {
		x = 1
	}
	return (x + 1) / 2
}

// PositionCredibility applies the formula.
func PositionCredibility(in CredibilityInputs) float64 {
	score := weightEvidenceQuality*in.EvidenceQuality*in.EvidenceWeight +
		weightSourceCredibility*in.SourceCredibility +
		weightCoherence*in.Coherence +
		weightCommunityVote*CommunityVoteScore(in.Upvotes, in.Downvotes)
	return clamp01(score)
}

// SourceCredibilityScore starts from the evidence category weight and adds a
// capped corroboration bonus when another included position on the same
// inquiry cites the same registrable domain. Domain-level matching is the
// deliberate choice here: same-URI matching misses mirrors of one source,
// semantic matching would make the score non-deterministic.
func SourceCredibilityScore(categoryWeight float64, position *types.Position, siblings []*types.Position) float64 {
	score := categoryWeight
	bonus := corroborationBonus(position, siblings)
	score += bonus
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func corroborationBonus(position *types.Position, siblings []*types.Position) float64 {
	if position == nil {
		return 0
	}
	own := evidenceDomains(position)
	if len(own) == 0 {
		return 0
	}
	var bonus float64
	for _, sibling := range siblings {
		if sibling == nil || sibling.ID == position.ID {
			continue
		}
		if !sibling.Status.Included() {
			continue
		}
		if domainsIntersect(own, evidenceDomains(sibling)) {
			bonus += corroborationStep
			if bonus >= maxCorroborationBonus {
				return maxCorroborationBonus
			}
		}
	}
	return bonus
}

func evidenceDomains(p *types.Position) map[string]bool {
	links := DecodeEvidenceLinks(p.EvidenceLinks)
	out := map[string]bool{}
	for _, link := range links {
		u, err := url.Parse(strings.TrimSpace(link))
		if err != nil || u.Host == "" {
			continue
		}
		domain := registrableDomain(strings.ToLower(u.Hostname()))
		if domain != "" {
			out[domain] = true
		}
	}
	return out
}

// twoPartSuffixes are common public suffixes spanning two labels; hosts under
// them keep three labels so bbc.co.uk does not collapse to co.uk.
var twoPartSuffixes = map[string]bool{
	"co.uk": true, "ac.uk": true, "gov.uk": true, "org.uk": true,
	"com.au": true, "net.au": true, "org.au": true,
	"co.jp": true, "or.jp": true, "ne.jp": true,
	"co.nz": true, "co.in": true, "co.kr": true, "co.za": true,
	"com.br": true, "com.cn": true, "com.mx": true, "com.sg": true,
}

// registrableDomain reduces a host to its last two labels (three under a
// two-part suffix) so subdomain mirrors of one source corroborate each other.
func registrableDomain(host string) string {
	host = strings.TrimSuffix(host, ".")
	if net.ParseIP(host) != nil {
		return host
	}
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	keep := 2
	if twoPartSuffixes[strings.Join(labels[len(labels)-2:], ".")] {
		keep = 3
	}
	return strings.Join(labels[len(labels)-keep:], ".")
}

func domainsIntersect(a, b map[string]bool) bool {
	for d := range a {
		if b[d] {
			return true
		}
	}
	return false
}

// NodeCredibility aggregates included positions into the node score: the
// stance-weighted mean of credibility scores, remapped from [-1,1] into [0,1].
// Returns ok=false when no position is included (the node score is left
// untouched in that case).
func NodeCredibility(positions []*types.Position) (float64, bool) {
	var weighted float64
	var count int
	for _, p := range positions {
		if p == nil || !p.Status.Included() {
			continue
		}
		weighted += stanceWeight(p.Stance) * p.CredibilityScore
		count++
	}
	if count == 0 {
		return 0, false
	}
	mean := weighted / float64(count)
	return clamp01((mean + 1) / 2), true
}

func stanceWeight(s types.Stance) float64 {
	switch s {
	case types.StanceOpposing:
		return stanceWeightOpposing
	case types.StanceNeutral:
		return stanceWeightNeutral
	default:
		return stanceWeightSupporting
	}
}

// SiblingsOf filters positions belonging to the same inquiry.
func SiblingsOf(positions []*types.Position, inquiryID uuid.UUID) []*types.Position {
	out := make([]*types.Position, 0, len(positions))
	for _, p := range positions {
		if p != nil && p.InquiryID == inquiryID {
			out = append(out, p)
		}
	}
	return out
}
