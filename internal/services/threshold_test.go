package services

import (
	"testing"

	"github.com/veridia/veridia-backend/internal/types"
)

func TestTierFor_Boundaries(t *testing.T) {
	thresholds := types.ThresholdSet{Display: 0.30, Inclusion: 0.55, AutoAmend: 0.85}

	cases := []struct {
		name  string
		score float64
		want  types.PositionStatus
	}{
		{"below display", 0.29, types.PositionStatusExcluded},
		{"at display", 0.30, types.PositionStatusWeak},
		{"between display and inclusion", 0.54, types.PositionStatusWeak},
		{"at inclusion", 0.55, types.PositionStatusCredible},
		{"between inclusion and auto-amend", 0.84, types.PositionStatusCredible},
		{"at auto-amend", 0.85, types.PositionStatusVerified},
		{"max", 1.0, types.PositionStatusVerified},
		{"zero", 0.0, types.PositionStatusExcluded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TierFor(tc.score, thresholds); got != tc.want {
				t.Fatalf("TierFor(%v) = %q, want %q", tc.score, got, tc.want)
			}
		})
	}
}

func TestTierFor_IncludedStatuses(t *testing.T) {
	thresholds := types.ThresholdSet{Display: 0.30, Inclusion: 0.55, AutoAmend: 0.85}
	if !TierFor(0.90, thresholds).Included() {
		t.Fatalf("verified should be included")
	}
	if !TierFor(0.60, thresholds).Included() {
		t.Fatalf("credible should be included")
	}
	if TierFor(0.40, thresholds).Included() {
		t.Fatalf("weak should not be included")
	}
	if TierFor(0.10, thresholds).Included() {
		t.Fatalf("excluded should not be included")
	}
}

func TestThresholdSet_Ascending(t *testing.T) {
	good := types.ThresholdSet{Display: 0.3, Inclusion: 0.55, AutoAmend: 0.85}
	if !good.Ascending() {
		t.Fatalf("expected ascending")
	}
	bad := types.ThresholdSet{Display: 0.6, Inclusion: 0.55, AutoAmend: 0.85}
	if bad.Ascending() {
		t.Fatalf("expected not ascending")
	}
}
