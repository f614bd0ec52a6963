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

const (
	minEvidenceWeight     = 0.3
	maxEvidenceWeight     = 1.0
	defaultEvidenceWeight = 0.5
)

// EvidenceCatalog serves evidence category weights. Reference data is
// read-mostly: the catalog holds an immutable in-memory snapshot swapped
// atomically on reload, so concurrent reads need no coordination.
type EvidenceCatalog interface {
	WeightFor(code string) float64
	Get(code string) (*types.EvidenceCategory, bool)
	All() []*types.EvidenceCategory
	// UpsertAll is the administrative mutation path; reloads the snapshot.
	UpsertAll(ctx context.Context, categories []*types.EvidenceCategory) error
	Reload(ctx context.Context) error
}

type evidenceCatalog struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.EvidenceCategoryRepo

	mu       sync.RWMutex
	snapshot map[string]*types.EvidenceCategory
	ordered  []*types.EvidenceCategory
}

func NewEvidenceCatalog(db *gorm.DB, log *logger.Logger, repo repos.EvidenceCategoryRepo) EvidenceCatalog {
	return &evidenceCatalog{
		db:       db,
		log:      log.With("service", "EvidenceCatalog"),
		repo:     repo,
		snapshot: map[string]*types.EvidenceCategory{},
	}
}

func (c *evidenceCatalog) Reload(ctx context.Context) error {
	categories, err := c.repo.GetAll(ctx, nil)
	if err != nil {
		return fmt.Errorf("load evidence categories: %w", err)
	}
	snapshot := make(map[string]*types.EvidenceCategory, len(categories))
	for _, cat := range categories {
		if cat != nil && cat.Code != "" {
			snapshot[cat.Code] = cat
		}
	}
	c.mu.Lock()
	c.snapshot = snapshot
	c.ordered = categories
	c.mu.Unlock()
	c.log.Info("evidence catalog loaded", "categories", len(snapshot))
	return nil
}

// WeightFor resolves a category's credibility weight, walking up the parent
// chain when the category declares no weight of its own.
func (c *evidenceCatalog) WeightFor(code string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := map[string]bool{}
	current := code
	for current != "" && !seen[current] {
		seen[current] = true
		cat, ok := c.snapshot[current]
		if !ok {
			break
		}
		if cat.Weight > 0 {
			return clampWeight(cat.Weight)
		}
		current = cat.ParentCode
	}
	return defaultEvidenceWeight
}

func (c *evidenceCatalog) Get(code string) (*types.EvidenceCategory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cat, ok := c.snapshot[code]
	return cat, ok
}

func (c *evidenceCatalog) All() []*types.EvidenceCategory {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*types.EvidenceCategory, len(c.ordered))
	copy(out, c.ordered)
	return out
}

func (c *evidenceCatalog) UpsertAll(ctx context.Context, categories []*types.EvidenceCategory) error {
	for _, cat := range categories {
		if cat == nil || cat.Code == "" {
			return pkgerrors.NewValidation("code", "evidence category code is required")
		}
		if cat.Weight != 0 && (cat.Weight < minEvidenceWeight || cat.Weight > maxEvidenceWeight) {
			return pkgerrors.NewValidation("weight", fmt.Sprintf("weight must be in [%.1f, %.1f]", minEvidenceWeight, maxEvidenceWeight))
		}
	}
	if err := c.repo.UpsertAll(ctx, nil, categories); err != nil {
		return err
	}
	return c.Reload(ctx)
}

func clampWeight(w float64) float64 {
	if w < minEvidenceWeight {
		return minEvidenceWeight
	}
	if w > maxEvidenceWeight {
		return maxEvidenceWeight
	}
	return w
}
