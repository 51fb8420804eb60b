package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the default
// backend for single-machine deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS assets (
	id                   TEXT PRIMARY KEY,
	scope                TEXT NOT NULL,
	status               TEXT NOT NULL DEFAULT 'pending',
	resolved             TEXT,
	last_enriched_at     DATETIME,
	last_sync_started_at DATETIME,
	last_enrich_error    TEXT NOT NULL DEFAULT '',
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS source_records (
	id         TEXT PRIMARY KEY,
	asset_id   TEXT NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
	source     TEXT NOT NULL,
	fields     TEXT NOT NULL,
	field_urls TEXT,
	fetched_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assets_status ON assets(status);
CREATE INDEX IF NOT EXISTS idx_source_records_asset ON source_records(asset_id, fetched_at);
CREATE INDEX IF NOT EXISTS idx_source_records_source ON source_records(asset_id, source);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateAsset(ctx context.Context, scope model.Scope) (*model.Asset, error) {
	if _, err := model.ParseScopeType(string(scope.Type)); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	scopeJSON, err := json.Marshal(scope)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal scope")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO assets (id, scope, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(scopeJSON), string(model.StatusPending), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert asset")
	}

	return &model.Asset{
		ID:        id,
		Scope:     scope,
		Status:    model.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) GetAsset(ctx context.Context, assetID string) (*model.Asset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, scope, status, resolved, last_enriched_at, last_sync_started_at, last_enrich_error, created_at, updated_at
		 FROM assets WHERE id = ?`,
		assetID,
	)
	return scanAsset(row)
}

func (s *SQLiteStore) ListAssets(ctx context.Context, filter AssetFilter) ([]model.Asset, error) {
	query := `SELECT id, scope, status, resolved, last_enriched_at, last_sync_started_at, last_enrich_error, created_at, updated_at
		 FROM assets WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.City != "" {
		query += ` AND json_extract(scope, '$.city') = ?`
		args = append(args, filter.City)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list assets")
	}
	defer rows.Close() //nolint:errcheck

	var assets []model.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	return assets, eris.Wrap(rows.Err(), "sqlite: iterate assets")
}

func (s *SQLiteStore) UpdateAssetStatus(ctx context.Context, assetID string, status model.AssetStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE assets SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), assetID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update asset status %s", assetID)
	}
	return checkRowsAffected(res, "asset", assetID)
}

func (s *SQLiteStore) MarkSyncStarted(ctx context.Context, assetID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE assets SET last_sync_started_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), time.Now().UTC(), assetID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark sync started %s", assetID)
	}
	return checkRowsAffected(res, "asset", assetID)
}

func (s *SQLiteStore) SaveResolved(ctx context.Context, assetID string, view model.ResolvedView, enrichedAt *time.Time, enrichErr string) error {
	viewJSON, err := json.Marshal(view)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal resolved view")
	}

	var enriched any
	if enrichedAt != nil {
		enriched = enrichedAt.UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE assets SET resolved = ?, last_enriched_at = COALESCE(?, last_enriched_at), last_enrich_error = ?, updated_at = ? WHERE id = ?`,
		string(viewJSON), enriched, enrichErr, time.Now().UTC(), assetID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save resolved view %s", assetID)
	}
	return checkRowsAffected(res, "asset", assetID)
}

func (s *SQLiteStore) DeleteAsset(ctx context.Context, assetID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, assetID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete asset %s", assetID)
	}
	return checkRowsAffected(res, "asset", assetID)
}

func (s *SQLiteStore) MergeRecord(ctx context.Context, rec model.SourceRecord) (*model.SourceRecord, error) {
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
		return nil, eris.Wrap(err, "sqlite: marshal record fields")
	}
	urlsJSON, err := json.Marshal(rec.FieldURLs)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal record urls")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO source_records (id, asset_id, source, fields, field_urls, fetched_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AssetID, string(rec.Source), string(fieldsJSON), string(urlsJSON), rec.FetchedAt.UTC(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert record for asset %s", rec.AssetID)
	}
	return &rec, nil
}

func (s *SQLiteStore) RecordsFor(ctx context.Context, assetID string) ([]model.SourceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, asset_id, source, fields, field_urls, fetched_at
		 FROM source_records WHERE asset_id = ? ORDER BY fetched_at ASC, id ASC`,
		assetID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: records for asset %s", assetID)
	}
	defer rows.Close() //nolint:errcheck

	var records []model.SourceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate records")
}

func (s *SQLiteStore) CountRecords(ctx context.Context, assetID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM source_records WHERE asset_id = ?`, assetID,
	).Scan(&n)
	return n, eris.Wrapf(err, "sqlite: count records for asset %s", assetID)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAsset(row scannable) (*model.Asset, error) {
	var a model.Asset
	var scopeJSON string
	var resolvedJSON sql.NullString
	var enrichedAt, syncStartedAt sql.NullTime

	err := row.Scan(&a.ID, &scopeJSON, &a.Status, &resolvedJSON, &enrichedAt, &syncStartedAt, &a.LastEnrichError, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "asset")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan asset")
	}

	if err := json.Unmarshal([]byte(scopeJSON), &a.Scope); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal scope")
	}
	if resolvedJSON.Valid && resolvedJSON.String != "" {
		if err := json.Unmarshal([]byte(resolvedJSON.String), &a.Resolved); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal resolved view")
		}
	}
	if enrichedAt.Valid {
		t := enrichedAt.Time
		a.LastEnrichedAt = &t
	}
	if syncStartedAt.Valid {
		t := syncStartedAt.Time
		a.LastSyncStartedAt = &t
	}
	return &a, nil
}

func scanRecord(row scannable) (*model.SourceRecord, error) {
	var rec model.SourceRecord
	var fieldsJSON string
	var urlsJSON sql.NullString

	err := row.Scan(&rec.ID, &rec.AssetID, &rec.Source, &fieldsJSON, &urlsJSON, &rec.FetchedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan record")
	}

	if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal record fields")
	}
	if urlsJSON.Valid && urlsJSON.String != "" && urlsJSON.String != "null" {
		if err := json.Unmarshal([]byte(urlsJSON.String), &rec.FieldURLs); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal record urls")
		}
	}
	return &rec, nil
}
