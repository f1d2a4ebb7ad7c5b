package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"frmon/internal/application/port"
)

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS reports (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  text TEXT NOT NULL,
  ts_ms INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_kind_ts ON reports(kind, ts_ms);
`)
	return err
}

func (r *Repo) SaveReport(ctx context.Context, rep port.Report) error {
	id := rep.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reports(id, kind, text, ts_ms, created_at) VALUES(?, ?, ?, ?, ?)`,
		id, string(rep.Kind), rep.Text, rep.CreatedAt.UnixMilli(), time.Now().UnixMilli())
	return err
}

// ListReports 按时间倒序返回最近的报告，kind 为空时不过滤
func (r *Repo) ListReports(ctx context.Context, kind port.ReportKind, limit int) ([]port.Report, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT id, kind, text, ts_ms FROM reports`
	args := []any{}
	if kind != "" {
		q += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	q += ` ORDER BY ts_ms DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []port.Report
	for rows.Next() {
		var (
			rep  port.Report
			k    string
			tsMs int64
		)
		if err := rows.Scan(&rep.ID, &k, &rep.Text, &tsMs); err != nil {
			return nil, err
		}
		rep.Kind = port.ReportKind(k)
		rep.CreatedAt = time.UnixMilli(tsMs).UTC()
		out = append(out, rep)
	}
	return out, rows.Err()
}

// PruneReports deletes reports older than before.
func (r *Repo) PruneReports(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE ts_ms < ?`, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ port.ReportRepository = (*Repo)(nil)
