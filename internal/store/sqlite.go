package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/crop-cli/internal/model"
	"github.com/sells-group/crop-cli/internal/predict"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using modernc.org/sqlite.
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
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS exports (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	query      TEXT,
	row_count  INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS export_regions (
	export_id   TEXT NOT NULL REFERENCES exports(id),
	rank        INTEGER NOT NULL,
	region_code TEXT NOT NULL,
	province    TEXT,
	district    TEXT,
	crop        TEXT NOT NULL,
	soil_code   TEXT,
	best_ratio  REAL,
	good_ratio  REAL,
	score       REAL,
	PRIMARY KEY (export_id, rank)
);

CREATE TABLE IF NOT EXISTS export_models (
	export_id   TEXT NOT NULL REFERENCES exports(id),
	crop        TEXT NOT NULL,
	model       TEXT NOT NULL,
	rmse        REAL NOT NULL,
	mae         REAL,
	r2          REAL NOT NULL,
	best_params TEXT,
	price_std   REAL
);

CREATE INDEX IF NOT EXISTS idx_exports_kind ON exports(kind);
CREATE INDEX IF NOT EXISTS idx_exports_created_at ON exports(created_at);
CREATE INDEX IF NOT EXISTS idx_export_models_export_id ON export_models(export_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// insertExport writes the export header inside tx.
func insertExport(ctx context.Context, tx *sql.Tx, kind Kind, query map[string]string, n int) (*Export, error) {
	e := &Export{
		ID:        uuid.New().String(),
		Kind:      kind,
		Query:     query,
		Rows:      n,
		CreatedAt: time.Now().UTC(),
	}
	var queryJSON sql.NullString
	if len(query) > 0 {
		b, err := json.Marshal(query)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: marshal query")
		}
		queryJSON = sql.NullString{String: string(b), Valid: true}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO exports (id, kind, query, row_count, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, string(kind), queryJSON, n, e.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert export")
	}
	return e, nil
}

// inTx runs fn in a transaction, rolling back on error.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) SaveSearch(ctx context.Context, kind Kind, query map[string]string, rows []model.RegionCrop) (*Export, error) {
	if kind != KindCropSearch && kind != KindRegionSearch {
		return nil, eris.Errorf("sqlite: %q is not a search export", kind)
	}
	var e *Export
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if e, err = insertExport(ctx, tx, kind, query, len(rows)); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO export_regions (export_id, rank, region_code, province, district, crop, soil_code, best_ratio, good_ratio, score)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare region insert")
		}
		defer stmt.Close() //nolint:errcheck

		for i, r := range rows {
			_, err := stmt.ExecContext(ctx,
				e.ID, i+1, r.Code, r.Province, r.District, r.Soil.Crop, r.Soil.Code,
				nullFloat(r.Soil.BestRatio), nullFloat(r.Soil.GoodRatio), nullFloat(r.Score),
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: insert region row %d", i+1)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *SQLiteStore) SaveModelSummary(ctx context.Context, crop string, rows []predict.SummaryRow) (*Export, error) {
	var e *Export
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if e, err = insertExport(ctx, tx, KindModelSummary, map[string]string{"crop": crop}, len(rows)); err != nil {
			return err
		}
		for _, r := range rows {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO export_models (export_id, crop, model, rmse, mae, r2, best_params) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				e.ID, crop, string(r.Model), r.RMSE, r.MAE, r.R2, r.BestParams,
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: insert model row %s", r.Model)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *SQLiteStore) SaveComparison(ctx context.Context, rows []predict.Comparison) (*Export, error) {
	var e *Export
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if e, err = insertExport(ctx, tx, KindComparison, nil, len(rows)); err != nil {
			return err
		}
		for _, r := range rows {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO export_models (export_id, crop, model, rmse, r2, price_std) VALUES (?, ?, ?, ?, ?, ?)`,
				e.ID, r.Crop, string(r.BestModel), r.RMSE, r.R2, r.PriceStd,
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: insert comparison row %s", r.Crop)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *SQLiteStore) GetExport(ctx context.Context, id string) (*Export, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, query, row_count, created_at FROM exports WHERE id = ?`, id)
	e, err := scanExport(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(model.ErrNotFound, "sqlite: export %s", id)
	}
	return e, err
}

func (s *SQLiteStore) ListExports(ctx context.Context, filter ExportFilter) ([]Export, error) {
	query := `SELECT id, kind, query, row_count, created_at FROM exports WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

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
		return nil, eris.Wrap(err, "sqlite: list exports")
	}
	defer rows.Close() //nolint:errcheck

	var out []Export
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list exports iterate")
}

func (s *SQLiteStore) RegionRows(ctx context.Context, exportID string) ([]RegionRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rank, region_code, province, district, crop, soil_code, best_ratio, good_ratio, score
		 FROM export_regions WHERE export_id = ? ORDER BY rank`, exportID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: region rows %s", exportID)
	}
	defer rows.Close() //nolint:errcheck

	var out []RegionRow
	for rows.Next() {
		var r RegionRow
		var province, district, soilCode sql.NullString
		var best, good, score sql.NullFloat64
		if err := rows.Scan(&r.Rank, &r.RegionCode, &province, &district, &r.Crop, &soilCode, &best, &good, &score); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan region row")
		}
		r.Province, r.District, r.SoilCode = province.String, district.String, soilCode.String
		r.BestRatio, r.GoodRatio, r.Score = floatPtr(best), floatPtr(good), floatPtr(score)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: region rows iterate")
}

func (s *SQLiteStore) ModelRows(ctx context.Context, exportID string) ([]ModelRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT crop, model, rmse, mae, r2, best_params, price_std
		 FROM export_models WHERE export_id = ? ORDER BY rowid`, exportID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: model rows %s", exportID)
	}
	defer rows.Close() //nolint:errcheck

	var out []ModelRow
	for rows.Next() {
		var r ModelRow
		var mae, priceStd sql.NullFloat64
		var params sql.NullString
		if err := rows.Scan(&r.Crop, &r.Model, &r.RMSE, &mae, &r.R2, &params, &priceStd); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan model row")
		}
		r.MAE, r.PriceStd, r.BestParams = floatPtr(mae), floatPtr(priceStd), params.String
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: model rows iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanExport(row scannable) (*Export, error) {
	var e Export
	var kind string
	var queryJSON sql.NullString
	err := row.Scan(&e.ID, &kind, &queryJSON, &e.Rows, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan export")
	}
	e.Kind = Kind(kind)
	if queryJSON.Valid {
		if err := json.Unmarshal([]byte(queryJSON.String), &e.Query); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal query")
		}
	}
	return &e, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
