// Package seed loads reference data from YAML config files on startup.
// Seeding is additive: existing rows are updated, never deleted, so
// operator-tuned values survive restarts with stale config.
package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/veridia/veridia-backend/internal/logger"
	"github.com/veridia/veridia-backend/internal/services"
	"github.com/veridia/veridia-backend/internal/types"
	"github.com/veridia/veridia-backend/internal/utils"
)

type evidenceCategoryFile struct {
	Categories []struct {
		Code   string  `yaml:"code"`
		Label  string  `yaml:"label"`
		Weight float64 `yaml:"weight"`
		Parent string  `yaml:"parent"`
	} `yaml:"categories"`
}

type thresholdFile struct {
	Thresholds []struct {
		InquiryType string  `yaml:"inquiry_type"`
		Display     float64 `yaml:"display"`
		Inclusion   float64 `yaml:"inclusion"`
		AutoAmend   float64 `yaml:"auto_amend"`
	} `yaml:"thresholds"`
}

// Run seeds evidence categories and threshold sets from CONFIG_DIR. Missing
// files are skipped: thresholds fall back to compiled defaults and category
// data may already be in the database.
func Run(ctx context.Context, log *logger.Logger, catalog services.EvidenceCatalog, thresholds services.ThresholdRegistry) error {
	dir := utils.GetEnv("CONFIG_DIR", "configs", log)
	seedLog := log.With("component", "seed")

	if err := seedCategories(ctx, seedLog, filepath.Join(dir, "evidence_categories.yaml"), catalog); err != nil {
		return err
	}
	return seedThresholds(ctx, seedLog, filepath.Join(dir, "thresholds.yaml"), thresholds)
}

func seedCategories(ctx context.Context, log *logger.Logger, path string, catalog services.EvidenceCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("evidence category config not found, skipping seed", "path", path)
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	var file evidenceCategoryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	categories := make([]*types.EvidenceCategory, 0, len(file.Categories))
	for _, c := range file.Categories {
		categories = append(categories, &types.EvidenceCategory{
			Code:       c.Code,
			Label:      c.Label,
			Weight:     c.Weight,
			ParentCode: c.Parent,
		})
	}
	if len(categories) == 0 {
		return nil
	}
	if err := catalog.UpsertAll(ctx, categories); err != nil {
		return fmt.Errorf("seed evidence categories: %w", err)
	}
	log.Info("evidence categories seeded", "count", len(categories))
	return nil
}

func seedThresholds(ctx context.Context, log *logger.Logger, path string, registry services.ThresholdRegistry) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("threshold config not found, using defaults", "path", path)
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	var file thresholdFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	sets := make([]*types.ThresholdSet, 0, len(file.Thresholds))
	for _, t := range file.Thresholds {
		sets = append(sets, &types.ThresholdSet{
			InquiryType: types.InquiryType(t.InquiryType),
			Display:     t.Display,
			Inclusion:   t.Inclusion,
			AutoAmend:   t.AutoAmend,
		})
	}
	if len(sets) == 0 {
		return nil
	}
	if err := registry.UpsertAll(ctx, sets); err != nil {
		return fmt.Errorf("seed thresholds: %w", err)
	}
	log.Info("threshold sets seeded", "count", len(sets))
	return nil
}
