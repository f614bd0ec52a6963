package services

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/veridia/veridia-backend/internal/logger"
	"github.com/veridia/veridia-backend/internal/realtime"
	"github.com/veridia/veridia-backend/internal/types"
)

// openTestDB gives each test an isolated in-memory database. Schemas are
// created with explicit DDL because the production column defaults are
// Postgres functions.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=private"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	statements := []string{
		`CREATE TABLE inquiry (
			id TEXT PRIMARY KEY,
			node_id TEXT NOT NULL,
			edge_id TEXT,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			embedding TEXT,
			status TEXT NOT NULL,
			merged_into_id TEXT,
			duplicate_justification TEXT,
			confidence REAL,
			created_by TEXT NOT NULL,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE "position" (
			id TEXT PRIMARY KEY,
			inquiry_id TEXT NOT NULL,
			created_by TEXT NOT NULL,
			stance TEXT NOT NULL,
			argument TEXT NOT NULL,
			evidence_category TEXT NOT NULL,
			evidence_links TEXT,
			evidence_quality REAL NOT NULL DEFAULT 0.5,
			source_credibility REAL NOT NULL DEFAULT 0.5,
			coherence REAL NOT NULL DEFAULT 0.5,
			credibility_score REAL NOT NULL DEFAULT 0,
			upvotes INTEGER NOT NULL DEFAULT 0,
			downvotes INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			ai_feedback TEXT,
			proposed_field_path TEXT,
			proposed_value TEXT,
			evaluated INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE position_vote (
			id TEXT PRIMARY KEY,
			position_id TEXT NOT NULL,
			voter_id TEXT NOT NULL,
			value INTEGER NOT NULL,
			created_at DATETIME,
			updated_at DATETIME,
			UNIQUE (position_id, voter_id)
		)`,
		`CREATE TABLE evaluation_task (
			id TEXT PRIMARY KEY,
			position_id TEXT NOT NULL,
			status TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			last_error_at DATETIME,
			locked_at DATETIME,
			heartbeat_at DATETIME,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE inquiry_related_node (
			id TEXT PRIMARY KEY,
			inquiry_id TEXT NOT NULL,
			node_id TEXT NOT NULL,
			created_at DATETIME,
			UNIQUE (inquiry_id, node_id)
		)`,
		`CREATE TABLE confidence_audit (
			id TEXT PRIMARY KEY,
			inquiry_id TEXT NOT NULL,
			raw_score REAL NOT NULL,
			stored_score REAL NOT NULL,
			limiting_node TEXT,
			evaluated_by TEXT NOT NULL,
			created_at DATETIME
		)`,
		`CREATE TABLE node_amendment (
			id TEXT PRIMARY KEY,
			node_id TEXT NOT NULL,
			field_path TEXT NOT NULL,
			original_value TEXT,
			new_value TEXT,
			inquiry_id TEXT,
			position_id TEXT,
			proposed_by TEXT NOT NULL,
			explanation TEXT,
			status TEXT NOT NULL,
			proposed_at DATETIME NOT NULL,
			applied_at DATETIME,
			applied_by TEXT,
			rejected_at DATETIME,
			rejected_by TEXT,
			rejection_reason TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE UNIQUE INDEX uidx_amendment_pending_path
			ON node_amendment (node_id, field_path) WHERE status = 'pending'`,
		`CREATE TABLE amendment_record (
			id TEXT PRIMARY KEY,
			amendment_id TEXT NOT NULL,
			node_id TEXT NOT NULL,
			field_path TEXT NOT NULL,
			prior_value TEXT,
			new_value TEXT,
			applied_by TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

// nopNotifier swallows events so tests do not need a bus.
type nopNotifier struct{}

func (nopNotifier) Publish(ctx context.Context, channel string, topic realtime.Topic, data any) {}

// stubEvaluator returns fixed scores without calling the oracle.
type stubEvaluator struct {
	result     *EvaluationResult
	confidence float64
	err        error
}

func (s *stubEvaluator) EvaluatePosition(ctx context.Context, inquiryType types.InquiryType, argument, evidenceCategory string, evidenceLinks []string) (*EvaluationResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubEvaluator) EvaluateConfidence(ctx context.Context, evalCtx ConfidenceContext) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.confidence, nil
}
