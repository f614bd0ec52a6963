package services

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/veridia/veridia-backend/internal/logger"
	pkgerrors "github.com/veridia/veridia-backend/internal/pkg/errors"
	"github.com/veridia/veridia-backend/internal/repos"
	"github.com/veridia/veridia-backend/internal/types"
)

// defaultThresholds applies to inquiry types with no configured set.
var defaultThresholds = types.ThresholdSet{
	Display:   0.30,
	Inclusion: 0.55,
	AutoAmend: 0.85,
}

// ThresholdRegistry serves the per-inquiry-type score cut-points. Same
// snapshot-swap model as the evidence catalog: reads are lock-free in the
// common path, administrative upserts reload.
type ThresholdRegistry interface {
	For(t types.InquiryType) types.ThresholdSet
	All() []*types.ThresholdSet
	UpsertAll(ctx context.Context, sets []*types.ThresholdSet) error
	Reload(ctx context.Context) error
}

type thresholdRegistry struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.ThresholdSetRepo

	mu       sync.RWMutex
	snapshot map[types.InquiryType]types.ThresholdSet
}

func NewThresholdRegistry(db *gorm.DB, log *logger.Logger, repo repos.ThresholdSetRepo) ThresholdRegistry {
	return &thresholdRegistry{
		db:       db,
		log:      log.With("service", "ThresholdRegistry"),
		repo:     repo,
		snapshot: map[types.InquiryType]types.ThresholdSet{},
	}
}

func (r *thresholdRegistry) Reload(ctx context.Context) error {
	sets, err := r.repo.GetAll(ctx, nil)
	if err != nil {
		return fmt.Errorf("load threshold sets: %w", err)
	}
	snapshot := make(map[types.InquiryType]types.ThresholdSet, len(sets))
	for _, s := range sets {
		if s != nil {
			snapshot[s.InquiryType] = *s
		}
	}
	r.mu.Lock()
	r.snapshot = snapshot
	r.mu.Unlock()
	r.log.Info("threshold registry loaded", "sets", len(snapshot))
	return nil
}

func (r *thresholdRegistry) For(t types.InquiryType) types.ThresholdSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.snapshot[t]; ok {
		return s
	}
	out := defaultThresholds
	out.InquiryType = t
	return out
}

func (r *thresholdRegistry) All() []*types.ThresholdSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.ThresholdSet, 0, len(r.snapshot))
	for _, s := range r.snapshot {
		copied := s
		out = append(out, &copied)
	}
	return out
}

func (r *thresholdRegistry) UpsertAll(ctx context.Context, sets []*types.ThresholdSet) error {
	for _, s := range sets {
		if s == nil || !s.InquiryType.Valid() {
			return pkgerrors.NewValidation("inquiry_type", "unknown inquiry type")
		}
		if !s.Ascending() {
			return pkgerrors.NewValidation("thresholds", "cut-points must satisfy display <= inclusion <= auto_amend")
		}
		for _, v := range []float64{s.Display, s.Inclusion, s.AutoAmend} {
			if v < 0 || v > 1 {
				return pkgerrors.NewValidation("thresholds", "cut-points must be in [0,1]")
			}
		}
	}
	if err := r.repo.UpsertAll(ctx, nil, sets); err != nil {
		return err
	}
	return r.Reload(ctx)
}

// TierFor classifies a credibility score against the thresholds for an
// inquiry type. Checked in order: auto_amend, inclusion, display.
func TierFor(score float64, thresholds types.ThresholdSet) types.PositionStatus {
	switch {
	case score >= thresholds.AutoAmend:
		return types.PositionStatusVerified
	case score >= thresholds.Inclusion:
		return types.PositionStatusCredible
	case score >= thresholds.Display:
		return types.PositionStatusWeak
	default:
		return types.PositionStatusExcluded
	}
}
