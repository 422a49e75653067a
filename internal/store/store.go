// Package store persists scraped subsidy records into Postgres. The crawler
// core only produces candidate records; upsert-by-natural-key and stale-row
// deactivation live here.
package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hojonavi/hojokin-harvester/internal/models"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// boilerplatePatterns match footer and chrome text that leaks into scraped
// descriptions.
var boilerplatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)copyright\s*[©(c)]*\s*[0-9]{0,4}[^。]*`),
	regexp.MustCompile(`(?i)all rights reserved\.?`),
	regexp.MustCompile(`ページの先頭へ(?:戻る)?`),
	regexp.MustCompile(`トップページへ(?:戻る)?`),
	regexp.MustCompile(`このページに関するお問い合わせ[^。]*。?`),
	regexp.MustCompile(`JavaScriptを有効にしてください。?`),
}

// SubsidyStoreConfig controls the Postgres connection pool.
type SubsidyStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// SubsidyStore upserts subsidy rows keyed by (source, source_id).
type SubsidyStore struct {
	pool   execCloser
	table  string
	logger *zap.Logger
}

// NewSubsidyStore creates a Postgres-backed SubsidyStore using the provided config.
func NewSubsidyStore(ctx context.Context, cfg SubsidyStoreConfig, logger *zap.Logger) (*SubsidyStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "subsidies"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubsidyStore{pool: pool, table: table, logger: logger}, nil
}

// NewSubsidyStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewSubsidyStoreWithPool(pool execCloser, table string, logger *zap.Logger) (*SubsidyStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "subsidies"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubsidyStore{pool: pool, table: table, logger: logger}, nil
}

// Close releases the underlying pool resources.
func (s *SubsidyStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// UpsertSubsidies writes each record, inserting or updating by the natural
// key (source, source_id). Descriptions are boilerplate-stripped on the way
// in. Returns the number of rows written; the first failing record aborts
// the batch.
func (s *SubsidyStore) UpsertSubsidies(ctx context.Context, records []models.ScrapedSubsidy) (int, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("subsidy store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	source,
	source_id,
	source_url,
	title,
	description,
	max_amount,
	subsidy_rate,
	start_date,
	deadline,
	target_area,
	organization,
	active,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now()
)
ON CONFLICT (source, source_id) DO UPDATE SET
	source_url = EXCLUDED.source_url,
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	max_amount = EXCLUDED.max_amount,
	subsidy_rate = EXCLUDED.subsidy_rate,
	start_date = EXCLUDED.start_date,
	deadline = EXCLUDED.deadline,
	target_area = EXCLUDED.target_area,
	organization = EXCLUDED.organization,
	active = EXCLUDED.active,
	updated_at = now()`, s.table)

	written := 0
	for _, rec := range records {
		if rec.Source == "" || rec.SourceID == "" {
			return written, fmt.Errorf("record %q is missing its natural key", rec.SourceURL)
		}
		args := []any{
			rec.Source,
			rec.SourceID,
			rec.SourceURL,
			rec.Title,
			CleanDescription(rec.Description),
			rec.MaxAmount,
			rec.SubsidyRate,
			rec.StartDate,
			rec.Deadline,
			rec.TargetArea,
			rec.Organization,
			rec.Active,
		}
		if _, err := s.pool.Exec(ctx, query, args...); err != nil {
			return written, fmt.Errorf("upsert subsidy %s:%s: %w", rec.Source, rec.SourceID, err)
		}
		written++
	}
	s.logger.Debug("upserted subsidies", zap.Int("count", written))
	return written, nil
}

// MarkInactive flags every row for a source whose source_id was not seen in
// the current run. Returns the number of rows deactivated.
func (s *SubsidyStore) MarkInactive(ctx context.Context, source string, seenIDs []string) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("subsidy store is not configured")
	}
	if source == "" {
		return 0, fmt.Errorf("source is required")
	}
	query := fmt.Sprintf(`
UPDATE %s SET active = false, updated_at = now()
WHERE source = $1 AND active = true AND NOT (source_id = ANY($2))`, s.table)

	tag, err := s.pool.Exec(ctx, query, source, seenIDs)
	if err != nil {
		return 0, fmt.Errorf("mark inactive for %s: %w", source, err)
	}
	return tag.RowsAffected(), nil
}

// CleanDescription strips footer and navigation boilerplate from a scraped
// description and collapses the leftover whitespace.
func CleanDescription(desc string) string {
	for _, re := range boilerplatePatterns {
		desc = re.ReplaceAllString(desc, "")
	}
	return strings.Join(strings.Fields(desc), " ")
}
