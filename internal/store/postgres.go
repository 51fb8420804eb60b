package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/db"
	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
)

// PostgresStore implements Store using pgxpool. Used when several workers
// share one database.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// Pool exposes the underlying pool for bulk helpers.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS assets (
	id                   TEXT PRIMARY KEY,
	scope                JSONB NOT NULL,
	status               TEXT NOT NULL DEFAULT 'pending',
	resolved             JSONB,
	last_enriched_at     TIMESTAMPTZ,
	last_sync_started_at TIMESTAMPTZ,
	last_enrich_error    TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS source_records (
	id         TEXT PRIMARY KEY,
	asset_id   TEXT NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
	source     TEXT NOT NULL,
	fields     JSONB NOT NULL,
	field_urls JSONB,
	fetched_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assets_status ON assets(status);
CREATE INDEX IF NOT EXISTS idx_source_records_asset ON source_records(asset_id, fetched_at);
CREATE INDEX IF NOT EXISTS idx_source_records_source ON source_records(asset_id, source);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateAsset(ctx context.Context, scope model.Scope) (*model.Asset, error) {
	if _, err := model.ParseScopeType(string(scope.Type)); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	scopeJSON, err := json.Marshal(scope)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal scope")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO assets (id, scope, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, scopeJSON, string(model.StatusPending), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert asset")
	}

	return &model.Asset{
		ID:        id,
		Scope:     scope,
		Status:    model.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) GetAsset(ctx context.Context, assetID string) (*model.Asset, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, scope, status, resolved, last_enriched_at, last_sync_started_at, last_enrich_error, created_at, updated_at
		 FROM assets WHERE id = $1`,
		assetID,
	)
	a, err := scanAssetPg(row)
	if err != nil {
		return nil, eris.Wrapf(err, "get asset %s", assetID)
	}
	return a, nil
}

func (s *PostgresStore) ListAssets(ctx context.Context, filter AssetFilter) ([]model.Asset, error) {
	query := `SELECT id, scope, status, resolved, last_enriched_at, last_sync_started_at, last_enrich_error, created_at, updated_at
		 FROM assets WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	if filter.City != "" {
		args = append(args, filter.City)
		query += ` AND scope->>'city' = $` + itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + itoa(len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list assets")
	}
	defer rows.Close()

	var assets []model.Asset
	for rows.Next() {
		a, err := scanAssetPg(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	return assets, eris.Wrap(rows.Err(), "postgres: iterate assets")
}

func (s *PostgresStore) UpdateAssetStatus(ctx context.Context, assetID string, status model.AssetStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE assets SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), assetID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update asset status %s", assetID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "asset %s", assetID)
	}
	return nil
}

func (s *PostgresStore) MarkSyncStarted(ctx context.Context, assetID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE assets SET last_sync_started_at = $1, updated_at = $2 WHERE id = $3`,
		at.UTC(), time.Now().UTC(), assetID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark sync started %s", assetID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "asset %s", assetID)
	}
	return nil
}

func (s *PostgresStore) SaveResolved(ctx context.Context, assetID string, view model.ResolvedView, enrichedAt *time.Time, enrichErr string) error {
	viewJSON, err := json.Marshal(view)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal resolved view")
	}

	var enriched any
	if enrichedAt != nil {
		enriched = enrichedAt.UTC()
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE assets SET resolved = $1, last_enriched_at = COALESCE($2, last_enriched_at), last_enrich_error = $3, updated_at = $4 WHERE id = $5`,
		viewJSON, enriched, enrichErr, time.Now().UTC(), assetID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save resolved view %s", assetID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "asset %s", assetID)
	}
	return nil
}

func (s *PostgresStore) DeleteAsset(ctx context.Context, assetID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM assets WHERE id = $1`, assetID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete asset %s", assetID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "asset %s", assetID)
	}
	return nil
}

func (s *PostgresStore) MergeRecord(ctx context.Context, rec model.SourceRecord) (*model.SourceRecord, error) {
	if _, err := model.ParseSource(string(rec.Source)); err != nil {
		return nil, err
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = time.Now().UTC()
	}

	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal record fields")
	}
	urlsJSON, err := json.Marshal(rec.FieldURLs)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal record urls")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO source_records (id, asset_id, source, fields, field_urls, fetched_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.AssetID, string(rec.Source), fieldsJSON, urlsJSON, rec.FetchedAt.UTC(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert record for asset %s", rec.AssetID)
	}
	return &rec, nil
}

// BulkInsertRecords replays a record export using the COPY protocol,
// preserving the original ids and fetch timestamps.
func (s *PostgresStore) BulkInsertRecords(ctx context.Context, records []model.SourceRecord) (int64, error) {
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		if _, err := model.ParseSource(string(rec.Source)); err != nil {
			return 0, err
		}
		fieldsJSON, err := json.Marshal(rec.Fields)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal record fields")
		}
		urlsJSON, err := json.Marshal(rec.FieldURLs)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal record urls")
		}
		rows = append(rows, []any{rec.ID, rec.AssetID, string(rec.Source), fieldsJSON, urlsJSON, rec.FetchedAt.UTC()})
	}
	return db.CopyRecords(ctx, s.pool,
		[]string{"id", "asset_id", "source", "fields", "field_urls", "fetched_at"}, rows)
}

func (s *PostgresStore) RecordsFor(ctx context.Context, assetID string) ([]model.SourceRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, asset_id, source, fields, field_urls, fetched_at
		 FROM source_records WHERE asset_id = $1 ORDER BY fetched_at ASC, id ASC`,
		assetID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: records for asset %s", assetID)
	}
	defer rows.Close()

	var records []model.SourceRecord
	for rows.Next() {
		var rec model.SourceRecord
		var fieldsJSON, urlsJSON []byte
		if err := rows.Scan(&rec.ID, &rec.AssetID, &rec.Source, &fieldsJSON, &urlsJSON, &rec.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		if err := json.Unmarshal(fieldsJSON, &rec.Fields); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal record fields")
		}
		if len(urlsJSON) > 0 {
			if err := json.Unmarshal(urlsJSON, &rec.FieldURLs); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal record urls")
			}
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate records")
}

func (s *PostgresStore) CountRecords(ctx context.Context, assetID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM source_records WHERE asset_id = $1`, assetID,
	).Scan(&n)
	return n, eris.Wrapf(err, "postgres: count records for asset %s", assetID)
}

func scanAssetPg(row pgx.Row) (*model.Asset, error) {
	var a model.Asset
	var scopeJSON, resolvedJSON []byte
	var enrichedAt, syncStartedAt *time.Time

	err := row.Scan(&a.ID, &scopeJSON, &a.Status, &resolvedJSON, &enrichedAt, &syncStartedAt, &a.LastEnrichError, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "asset")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan asset")
	}

	if err := json.Unmarshal(scopeJSON, &a.Scope); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal scope")
	}
	if len(resolvedJSON) > 0 {
		if err := json.Unmarshal(resolvedJSON, &a.Resolved); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal resolved view")
		}
	}
	a.LastEnrichedAt = enrichedAt
	a.LastSyncStartedAt = syncStartedAt
	return &a, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
